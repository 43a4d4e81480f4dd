package codfreqio

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hivdb/codfreq/posna"
	"github.com/hivdb/codfreq/profile"
	"github.com/hivdb/codfreq/segfreq"
)

func strPtr(s string) *string { return &s }

func seg(bases string, pos int) segfreqSegment {
	nodes := make([]*posna.PosNA, len(bases))
	for i, b := range []byte(bases) {
		nodes[i] = &posna.PosNA{Pos: pos + i, InsIdx: 0, Base: b}
	}
	return nodes
}

// segfreqSegment is a local alias avoiding a direct dependency on segfreq's
// unexported Segment constructor; segfreq.SegFreq.Add accepts any
// []*posna.PosNA value assignable to segfreq.Segment.
type segfreqSegment = segfreq.Segment

func newTestSegFreq(t *testing.T) *segfreq.SegFreq {
	t.Helper()
	sf, err := segfreq.New(3, 1)
	if err != nil {
		t.Fatalf("segfreq.New: %v", err)
	}
	// Simulates a length-5 read "ATGTC" spanning positions 10-14, producing
	// three overlapping segment_size=3 windows.
	if err := sf.Add(seg("ATG", 10), 5); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := sf.Add(seg("TGT", 11), 5); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := sf.Add(seg("GTC", 12), 5); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return sf
}

func testFragment() profile.FragmentConfig {
	return profile.FragmentConfig{
		FragmentName: "PR",
		GeneName:     strPtr("PR"),
		RefRanges:    []profile.NAPosRange{{Start: 10, End: 12}},
		Outputs:      []string{"codfreq", "nucfreq", "consensus", "patterns"},
	}
}

func TestIterCodFreq(t *testing.T) {
	sf := newTestSegFreq(t)
	refSeq := "NNNNNNNNNATGNN" // positions 10-12 -> "ATG", matching the consensus codon
	rows, err := IterCodFreq(sf, refSeq, []profile.FragmentConfig{testFragment()})
	if err != nil {
		t.Fatalf("IterCodFreq: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one codon row, got %d", len(rows))
	}
	row := rows[0]
	if row.Gene != "PR" || row.Position != 1 || row.Total != 5 || row.Codon != "ATG" || row.Count != 5 {
		t.Errorf("unexpected row: %+v", row)
	}
}

func TestIterCodFreqSkipsRealignmentWhenDisabled(t *testing.T) {
	sf := newTestSegFreq(t)
	refSeq := "NNNNNNNNNATGNN"
	fragment := testFragment()
	fragment.CodonAlign = json.RawMessage("false")
	rows, err := IterCodFreq(sf, refSeq, []profile.FragmentConfig{fragment})
	if err != nil {
		t.Fatalf("IterCodFreq: %v", err)
	}
	if len(rows) != 1 || rows[0].Codon != "ATG" {
		t.Errorf("expected unchanged codon row, got %+v", rows)
	}
}

func TestWriteCodFreqCSVHasBOMAndHeader(t *testing.T) {
	var buf strings.Builder
	rows := []CodonFreqRow{{Gene: "PR", Position: 1, Total: 5, Codon: "ATG", Count: 5}}
	require.NoError(t, WriteCodFreqCSV(&buf, rows))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "﻿"), "expected leading UTF-8 BOM")
	require.Contains(t, out, "gene,position,total,codon,count")
	require.Contains(t, out, "PR,1,5,ATG,5")
}

func TestIterNucFreq(t *testing.T) {
	sf := newTestSegFreq(t)
	rows := IterNucFreq(sf, []profile.FragmentConfig{testFragment()})
	byPos := map[int]NucFreqRow{}
	for _, r := range rows {
		byPos[r.Position] = r
	}
	if byPos[1].Nuc != "A" || byPos[1].Count != 5 {
		t.Errorf("expected position 1 = A x5, got %+v", byPos[1])
	}
	if byPos[2].Nuc != "T" || byPos[2].Count != 5 {
		t.Errorf("expected position 2 = T x5, got %+v", byPos[2])
	}
	if byPos[3].Nuc != "G" || byPos[3].Count != 5 {
		t.Errorf("expected position 3 = G x5, got %+v", byPos[3])
	}
}

func TestReferenceSequenceRendersFixedRange(t *testing.T) {
	records := ReferenceSequence("NNNNNNNNNACGNN", testFragment())
	if len(records) != 1 {
		t.Fatalf("expected one reference record (default level), got %d", len(records))
	}
	rec := records[0]
	if rec.Gene != "PR" || rec.Level != segfreq.DefaultConsensusLevel {
		t.Errorf("unexpected record: %+v", rec)
	}
	got := renderRecord(FastaRecord{Ranges: rec.Ranges, Nodes: rec.Nodes})
	if got != "ACG" {
		t.Errorf("expected reference bases ACG, got %q", got)
	}
}

func TestIterConsensusMatchesObservedCodon(t *testing.T) {
	sf := newTestSegFreq(t)
	records := IterConsensus(sf, testFragment())
	if len(records) != 1 {
		t.Fatalf("expected one consensus record, got %d", len(records))
	}
	got := renderRecord(FastaRecord{Ranges: records[0].Ranges, Nodes: records[0].Nodes})
	if got != "ATG" {
		t.Errorf("expected consensus ATG, got %q", got)
	}
}

func TestIterPatternsIncludesReferenceRowAndPattern(t *testing.T) {
	sf := newTestSegFreq(t)
	records := IterPatterns(sf, "NNNNNNNNNACGNN", "HIV1", testFragment(), "sample1")
	if len(records) != 2 {
		t.Fatalf("expected reference row + 1 pattern, got %d", len(records))
	}
	if records[0].Header != "HIV1" {
		t.Errorf("expected reference row header HIV1, got %q", records[0].Header)
	}
	if renderRecord(FastaRecord{Ranges: records[0].Ranges, Nodes: records[0].Nodes}) != "ACG" {
		t.Errorf("unexpected reference row sequence")
	}
	pattern := records[1]
	if !strings.HasPrefix(pattern.Header, "sample1.1|count=5|pcnt=100") {
		t.Errorf("unexpected pattern header: %q", pattern.Header)
	}
	if renderRecord(FastaRecord{Ranges: pattern.Ranges, Nodes: pattern.Nodes}) != "ATG" {
		t.Errorf("unexpected pattern sequence")
	}
}

func TestWriteFastaAlignmentNoBOM(t *testing.T) {
	var buf strings.Builder
	err := WriteFastaAlignment(&buf, []FastaRecord{
		{Header: "ref", Ranges: []profile.NAPosRange{{Start: 1, End: 3}}, Nodes: []posna.PosNA{
			{Pos: 1, Base: 'A'}, {Pos: 2, Base: 'C'}, {Pos: 3, Base: 'G'},
		}},
	})
	if err != nil {
		t.Fatalf("WriteFastaAlignment: %v", err)
	}
	out := buf.String()
	if strings.HasPrefix(out, "﻿") {
		t.Fatal("FASTA output must not carry a BOM")
	}
	if out != ">ref\nACG\n" {
		t.Errorf("unexpected FASTA output: %q", out)
	}
}

func TestTranslateCodonUnambiguous(t *testing.T) {
	require.Equal(t, "M", TranslateCodon("ATG"))
	require.Equal(t, "*", TranslateCodon("TAA"))
}

func TestTranslateCodonAmbiguousUnion(t *testing.T) {
	// TTY (Y = C or T) => TTC=F, TTT=F => just F.
	if got := TranslateCodon("TTY"); got != "F" {
		t.Errorf("TTY => %q, want F", got)
	}
	// MGN (M=A/C, G, N=any) spans several amino acids; just assert it's
	// non-empty and sorted.
	got := TranslateCodon("MGN")
	if got == "" {
		t.Fatal("expected a non-empty ambiguous translation")
	}
	sorted := []byte(got)
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1] > sorted[i] {
			t.Fatalf("expected sorted amino acid set, got %q", got)
		}
	}
}

func TestTranslateCodonWrongLengthReturnsEmpty(t *testing.T) {
	if got := TranslateCodon("AT"); got != "" {
		t.Errorf("expected empty translation for short codon, got %q", got)
	}
}
