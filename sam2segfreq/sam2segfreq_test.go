package sam2segfreq

import (
	"testing"

	"github.com/grailbio/hts/sam"

	"github.com/hivdb/codfreq/segfreq"
)

func testRef(t *testing.T) *sam.Reference {
	t.Helper()
	ref, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	if err != nil {
		t.Fatalf("sam.NewReference: %v", err)
	}
	return ref
}

func newRecord(t *testing.T, ref *sam.Reference, pos int, cigar sam.Cigar, seq string, qual []byte) *sam.Record {
	t.Helper()
	return &sam.Record{
		Name:  "r1",
		Ref:   ref,
		Pos:   pos,
		Cigar: cigar,
		Seq:   sam.NewSeq([]byte(seq)),
		Qual:  qual,
	}
}

func TestAddReadSegmentsAllMatch(t *testing.T) {
	ref := testRef(t)
	cigar := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 6)}
	rec := newRecord(t, ref, 9, cigar, "ACGTAC", []byte{40, 40, 40, 40, 40, 40})

	sf, err := segfreq.New(3, 1)
	if err != nil {
		t.Fatalf("segfreq.New: %v", err)
	}
	opts := Opts{SegmentSize: 3, SegmentStep: 1}
	if err := addReadSegments(rec, opts, sf); err != nil {
		t.Fatalf("addReadSegments: %v", err)
	}

	// 6 observed positions (10..15) produce 4 sliding windows of size 3.
	posnas := sf.GetPosNAs(10)
	if posnas["A"] != 1 {
		t.Errorf("expected one A observation at pos 10, got %+v", posnas)
	}
}

func TestAddReadSegmentsWithDeletion(t *testing.T) {
	ref := testRef(t)
	cigar := sam.Cigar{
		sam.NewCigarOp(sam.CigarMatch, 2),
		sam.NewCigarOp(sam.CigarDeletion, 1),
		sam.NewCigarOp(sam.CigarMatch, 2),
	}
	rec := newRecord(t, ref, 4, cigar, "ACGT", []byte{40, 40, 40, 40})

	sf, err := segfreq.New(3, 1)
	if err != nil {
		t.Fatalf("segfreq.New: %v", err)
	}
	opts := Opts{SegmentSize: 3, SegmentStep: 1}
	if err := addReadSegments(rec, opts, sf); err != nil {
		t.Fatalf("addReadSegments: %v", err)
	}

	posnas := sf.GetPosNAs(7)
	if posnas["-"] != 1 {
		t.Errorf("expected a deletion observation at pos 7, got %+v", posnas)
	}
}

func TestAddReadSegmentsSkipsReadShorterThanSegmentSize(t *testing.T) {
	ref := testRef(t)
	cigar := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 2)}
	rec := newRecord(t, ref, 0, cigar, "AC", []byte{40, 40})

	sf, err := segfreq.New(3, 1)
	if err != nil {
		t.Fatalf("segfreq.New: %v", err)
	}
	opts := Opts{SegmentSize: 3, SegmentStep: 1}
	if err := addReadSegments(rec, opts, sf); err != nil {
		t.Fatalf("addReadSegments: %v", err)
	}
	if posnas := sf.GetPosNAs(1); len(posnas) != 0 {
		t.Errorf("expected no observations from a too-short read, got %+v", posnas)
	}
}

func TestAddReadSegmentsMinBaseQualDropsWindow(t *testing.T) {
	ref := testRef(t)
	cigar := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 3)}
	// First base carries Phred quality 0, well below any reasonable floor.
	rec := newRecord(t, ref, 0, cigar, "ACG", []byte{0, 40, 40})

	sf, err := segfreq.New(3, 1)
	if err != nil {
		t.Fatalf("segfreq.New: %v", err)
	}
	opts := Opts{SegmentSize: 3, SegmentStep: 1, MinBaseQual: 10}
	if err := addReadSegments(rec, opts, sf); err != nil {
		t.Fatalf("addReadSegments: %v", err)
	}
	if posnas := sf.GetPosNAs(1); len(posnas) != 0 {
		t.Errorf("expected low-quality window to be dropped, got %+v", posnas)
	}
}
