package codonalign

import (
	"encoding/json"
	"testing"

	"github.com/hivdb/codfreq/profile"
)

func TestNearestCodonBoundary(t *testing.T) {
	cases := []struct{ idx, base, want int }{
		{0, 0, 0},
		{1, 0, 0},
		{2, 0, 3},
		{3, 0, 3},
		{4, 0, 3},
		{5, 0, 6},
		{7, 3, 6},
	}
	for _, c := range cases {
		if got := nearestCodonBoundary(c.idx, c.base); got != c.want {
			t.Errorf("nearestCodonBoundary(%d, %d) = %d, want %d", c.idx, c.base, got, c.want)
		}
	}
}

func TestShiftSafeAndApplyShiftRightward(t *testing.T) {
	ref := []byte("AAAAAAAA")
	query := []byte("AAAA-AAA") // gap run [4,5)

	if !shiftSafe(ref, 4, 5, 3) {
		t.Fatal("expected shift to be safe over a run of identical flanking bases")
	}
	applyShift(query, ref, 4, 5, 3)
	if string(query) != "AAA-AAAA" {
		t.Errorf("unexpected query after shift: %q", query)
	}
}

func TestShiftSafeAndApplyShiftLeftward(t *testing.T) {
	ref := []byte("AAAAAAAA")
	query := []byte("AAA-AAAA") // gap run [3,4)

	if !shiftSafe(ref, 3, 4, 5) {
		t.Fatal("expected shift to be safe over a run of identical flanking bases")
	}
	applyShift(query, ref, 3, 4, 5)
	if string(query) != "AAAAA-AA" {
		t.Errorf("unexpected query after shift: %q", query)
	}
}

func TestShiftSafeRejectsMismatchedFlank(t *testing.T) {
	ref := []byte("ACGTACGT")
	if shiftSafe(ref, 4, 5, 3) {
		t.Fatal("expected shift to be unsafe when flanking bases differ")
	}
}

func TestSnapToCodonBoundariesMovesGapOntoBoundary(t *testing.T) {
	ref := []byte("AAAAAAAA")
	query := []byte("AAAA-AAA")
	snapToCodonBoundaries(ref, query, 0, len(ref), 0)
	if string(query) != "AAA-AAAA" {
		t.Errorf("expected gap snapped to codon boundary, got %q", query)
	}
}

func TestSnapToCodonBoundariesRespectsMinGapDistance(t *testing.T) {
	ref := []byte("AAAAAAAAAAAA")
	query := []byte("AAAA-A-AAAAA") // two runs close together
	snapToCodonBoundaries(ref, query, 0, len(ref), 10)
	// With a large minGapDistance neither run has room to move without
	// colliding, so both should remain exactly where they started.
	if string(query) != "AAAA-A-AAAAA" {
		t.Errorf("expected no shift under a large min gap distance, got %q", query)
	}
}

func TestAlignFragmentNoOpWhenConsensusMatchesReference(t *testing.T) {
	refSeq := []byte("AAACCCGGG")
	codons := CounterTable{}
	codons.Get(FragPos{Fragment: "PR", AAPos: 1}).Add("AAA", 5, 50)
	codons.Get(FragPos{Fragment: "PR", AAPos: 2}).Add("CCC", 5, 50)
	codons.Get(FragPos{Fragment: "PR", AAPos: 3}).Add("GGG", 5, 50)

	fragment := profile.FragmentConfig{
		FragmentName: "PR",
		RefRanges:    []profile.NAPosRange{{Start: 1, End: 9}},
	}

	if err := AlignFragment(codons, refSeq, fragment); err != nil {
		t.Fatalf("AlignFragment: %v", err)
	}

	for aapos, want := range map[int]string{1: "AAA", 2: "CCC", 3: "GGG"} {
		got := codons[FragPos{Fragment: "PR", AAPos: aapos}].MostCommon()
		if got.Bytes != want {
			t.Errorf("aapos %d: expected codon to remain %q, got %q", aapos, want, got.Bytes)
		}
	}
}

func TestAlignFragmentDisabledSkipsRealignment(t *testing.T) {
	refSeq := []byte("AAACCCGGG")
	codons := CounterTable{}
	codons.Get(FragPos{Fragment: "PR", AAPos: 1}).Add("TTT", 5, 50)

	fragment := profile.FragmentConfig{
		FragmentName: "PR",
		RefRanges:    []profile.NAPosRange{{Start: 1, End: 9}},
		CodonAlign:   json.RawMessage("false"),
	}

	if err := AlignFragment(codons, refSeq, fragment); err != nil {
		t.Fatalf("AlignFragment: %v", err)
	}
	got := codons[FragPos{Fragment: "PR", AAPos: 1}].MostCommon()
	if got.Bytes != "TTT" {
		t.Errorf("expected disabled codon alignment to leave counters untouched, got %q", got.Bytes)
	}
}
