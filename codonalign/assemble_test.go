package codonalign

import (
	"testing"

	"github.com/hivdb/codfreq/profile"
)

func TestAAPosToNAPosSingleRange(t *testing.T) {
	ranges := []profile.NAPosRange{{Start: 1, End: 99}}
	if got := AAPosToNAPos(1, ranges); got != 1 {
		t.Errorf("aapos 1 => napos %d, want 1", got)
	}
	if got := AAPosToNAPos(2, ranges); got != 4 {
		t.Errorf("aapos 2 => napos %d, want 4", got)
	}
}

func TestAAPosToNAPosOutOfRange(t *testing.T) {
	ranges := []profile.NAPosRange{{Start: 1, End: 9}}
	if got := AAPosToNAPos(10, ranges); got != -1 {
		t.Errorf("expected -1 for out-of-range aapos, got %d", got)
	}
}

func TestAssembleAlignmentUsesMostCommonCodon(t *testing.T) {
	refSeq := []byte("AAAAAAAAA") // 3 codons of AAA
	codons := CounterTable{}
	codons.Get(FragPos{Fragment: "PR", AAPos: 1}).Add("TTT", 10, 100)
	codons.Get(FragPos{Fragment: "PR", AAPos: 1}).Add("AAA", 2, 20)

	ranges := []profile.NAPosRange{{Start: 1, End: 9}}
	assembled, ok := AssembleAlignment(codons, refSeq, "PR", ranges)
	if !ok {
		t.Fatal("expected assembly to succeed")
	}
	if assembled.FirstAA != 1 || assembled.LastAA != 1 {
		t.Errorf("expected span [1,1], got [%d,%d]", assembled.FirstAA, assembled.LastAA)
	}
	if string(assembled.QuerySeq[0:3]) != "TTT" {
		t.Errorf("expected most-common codon TTT, got %q", assembled.QuerySeq[0:3])
	}
	if string(assembled.RefSeq[0:3]) != "AAA" {
		t.Errorf("expected reference codon AAA, got %q", assembled.RefSeq[0:3])
	}
}

func TestAssembleAlignmentUnobservedPositionIsDeletion(t *testing.T) {
	refSeq := []byte("AAACCC")
	codons := CounterTable{}
	ranges := []profile.NAPosRange{{Start: 1, End: 6}}
	if _, ok := AssembleAlignment(codons, refSeq, "PR", ranges); ok {
		t.Fatal("expected no codon observed anywhere to fail assembly")
	}

	codons.Get(FragPos{Fragment: "PR", AAPos: 2}).Add("CCC", 1, 10)
	assembled, ok := AssembleAlignment(codons, refSeq, "PR", ranges)
	if !ok {
		t.Fatal("expected assembly to succeed once one codon is observed")
	}
	if string(assembled.QuerySeq[0:3]) != delCodon {
		t.Errorf("expected unobserved aapos 1 to render as deletion codon, got %q", assembled.QuerySeq[0:3])
	}
	if assembled.FirstAA != 2 || assembled.LastAA != 2 {
		t.Errorf("expected span [2,2], got [%d,%d]", assembled.FirstAA, assembled.LastAA)
	}
}

func TestAssembleAlignmentPadsInsertionCodon(t *testing.T) {
	refSeq := []byte("AAA")
	codons := CounterTable{}
	codons.Get(FragPos{Fragment: "PR", AAPos: 1}).Add("AAATT", 3, 30)
	ranges := []profile.NAPosRange{{Start: 1, End: 3}}

	assembled, ok := AssembleAlignment(codons, refSeq, "PR", ranges)
	if !ok {
		t.Fatal("expected assembly to succeed")
	}
	if len(assembled.RefSeq) != 5 || len(assembled.QuerySeq) != 5 {
		t.Fatalf("expected both rows padded to 5 bytes, got %d/%d", len(assembled.RefSeq), len(assembled.QuerySeq))
	}
	if string(assembled.RefSeq) != "AAA--" {
		t.Errorf("expected reference padded with gaps, got %q", assembled.RefSeq)
	}
}
