package posna

import (
	"testing"
)

func ap(seqPos int, seqOK bool, refPos int, refOK bool) AlignedPair {
	return AlignedPair{SeqPos: seqPos, SeqOK: seqOK, RefPos: refPos, RefOK: refOK}
}

func TestExtractReadPosNAsNoIndels(t *testing.T) {
	seq := []byte("ACGTAC")
	qual := []byte{30, 30, 30, 30, 30, 30}
	pairs := []AlignedPair{
		ap(0, true, 9, true),
		ap(1, true, 10, true),
		ap(2, true, 11, true),
		ap(3, true, 12, true),
		ap(4, true, 13, true),
		ap(5, true, 14, true),
	}

	got := ExtractReadPosNAs(seq, qual, pairs)
	if len(got) != len(seq) {
		t.Fatalf("expected %d posnas, got %d", len(seq), len(got))
	}
	wantPos := []int{10, 11, 12, 13, 14, 15}
	var concatenated []byte
	for i, o := range got {
		if o.InsIdx != 0 {
			t.Errorf("posna %d: expected ins_idx 0, got %d", i, o.InsIdx)
		}
		if o.Pos != wantPos[i] {
			t.Errorf("posna %d: expected pos %d, got %d", i, wantPos[i], o.Pos)
		}
		concatenated = append(concatenated, o.Base)
	}
	if string(concatenated) != "ACGTAC" {
		t.Errorf("expected concatenated bases ACGTAC, got %s", concatenated)
	}
}

func TestExtractReadPosNAsMiddleInsertion(t *testing.T) {
	seq := []byte("ACXGT")
	pairs := []AlignedPair{
		ap(0, true, 9, true),
		ap(1, true, 10, true),
		ap(2, true, 0, false),
		ap(3, true, 11, true),
		ap(4, true, 12, true),
	}
	got := ExtractReadPosNAs(seq, nil, pairs)
	want := []PosNA{
		{10, 0, 'A'},
		{11, 0, 'C'},
		{11, 1, 'X'},
		{12, 0, 'G'},
		{13, 0, 'T'},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d posnas, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].PosNA != want[i] {
			t.Errorf("posna %d: expected %+v, got %+v", i, want[i], got[i].PosNA)
		}
	}
}

func TestExtractReadPosNAsStripsTrailingInsertion(t *testing.T) {
	seq := []byte("ACGTXY")
	pairs := []AlignedPair{
		ap(0, true, 9, true),
		ap(1, true, 10, true),
		ap(2, true, 11, true),
		ap(3, true, 12, true),
		ap(4, true, 0, false),
		ap(5, true, 0, false),
	}
	got := ExtractReadPosNAs(seq, nil, pairs)
	if len(got) != 4 {
		t.Fatalf("expected trailing insertion stripped, got %d posnas: %+v", len(got), got)
	}
	for _, o := range got {
		if o.InsIdx != 0 {
			t.Errorf("unexpected trailing insertion survived: %+v", o)
		}
	}
}

func TestExtractReadPosNAsEmptyRead(t *testing.T) {
	got := ExtractReadPosNAs(nil, nil, nil)
	if len(got) != 0 {
		t.Fatalf("expected empty output for empty read, got %d", len(got))
	}
}

func TestExtractReadPosNAsDeletionBorrowsQuality(t *testing.T) {
	seq := []byte("AC")
	qual := []byte{40, 20}
	pairs := []AlignedPair{
		ap(0, true, 9, true),
		ap(0, false, 10, true), // deletion right after matching base 0
		ap(1, true, 11, true),
	}
	got := ExtractReadPosNAs(seq, qual, pairs)
	if len(got) != 3 {
		t.Fatalf("expected 3 posnas, got %d", len(got))
	}
	if got[1].Base != Gap {
		t.Fatalf("expected deletion at index 1, got %+v", got[1])
	}
	if got[1].Qual != 40 {
		t.Errorf("expected deletion to borrow quality from previous seq index (40), got %d", got[1].Qual)
	}
}

func TestExtractReadPosNASkipsMalformedPair(t *testing.T) {
	seq := []byte("AC")
	pairs := []AlignedPair{
		ap(0, true, 9, true),
		{SeqOK: false, RefOK: false}, // malformed: neither side present
		ap(1, true, 10, true),
	}
	got := ExtractReadPosNAs(seq, nil, pairs)
	want := []PosNA{
		{10, 0, 'A'},
		{11, 0, 'C'},
	}
	if len(got) != len(want) {
		t.Fatalf("expected malformed pair skipped (%d posnas), got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i].PosNA != want[i] {
			t.Errorf("posna %d: expected %+v, got %+v", i, want[i], got[i].PosNA)
		}
		if got[i].InsIdx > 0 && got[i].Base == Gap {
			t.Fatalf("posna %d: forbidden InsIdx>0 with Base=Gap combination", i)
		}
	}
}

func TestMergePosNAIUPAC(t *testing.T) {
	a := PosNA{Pos: 5, InsIdx: 0, Base: 'A'}
	c := PosNA{Pos: 5, InsIdx: 0, Base: 'C'}
	merged := MergePosNA(a, c)
	if merged.Base != 'M' {
		t.Errorf("expected A+C=M, got %c", merged.Base)
	}
}

func TestMergePosNAGapWins(t *testing.T) {
	a := PosNA{Pos: 5, InsIdx: 0, Base: 'A'}
	gap := PosNA{Pos: 5, InsIdx: 0, Base: Gap}
	merged := MergePosNA(a, gap)
	if merged.Base != Gap {
		t.Errorf("expected gap to win merge, got %c", merged.Base)
	}
}

func TestMergePosNAMismatchedPosPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on mismatched pos")
		}
	}()
	MergePosNA(PosNA{Pos: 1, Base: 'A'}, PosNA{Pos: 2, Base: 'C'})
}
