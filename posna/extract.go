package posna

import (
	"github.com/grailbio/hts/sam"
)

// AlignedPair links a 0-based sequence index to a 0-based reference index.
// Either side may be absent: SeqOK false means a deletion, RefOK false means
// an insertion. This is the Go analogue of pysam's
// read.get_aligned_pairs(matches_only=False).
type AlignedPair struct {
	SeqPos int
	SeqOK  bool
	RefPos int
	RefOK  bool
}

// BuildAlignedPairs walks a CIGAR string the way the teacher's own
// alignRelevantBases (pileup/snp/pileup.go) does, producing one AlignedPair
// per consumed base. Soft and hard clips consume their respective
// coordinate(s) but never appear in the output, matching pysam.
func BuildAlignedPairs(cigar sam.Cigar, refStart int) []AlignedPair {
	pairs := make([]AlignedPair, 0, cigarSpan(cigar))
	seqPos := 0
	refPos := refStart
	for _, co := range cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := 0; i < n; i++ {
				pairs = append(pairs, AlignedPair{
					SeqPos: seqPos, SeqOK: true,
					RefPos: refPos, RefOK: true,
				})
				seqPos++
				refPos++
			}
		case sam.CigarInsertion:
			for i := 0; i < n; i++ {
				pairs = append(pairs, AlignedPair{
					SeqPos: seqPos, SeqOK: true,
					RefOK: false,
				})
				seqPos++
			}
		case sam.CigarDeletion, sam.CigarSkipped:
			for i := 0; i < n; i++ {
				pairs = append(pairs, AlignedPair{
					SeqOK:  false,
					RefPos: refPos, RefOK: true,
				})
				refPos++
			}
		case sam.CigarSoftClipped:
			seqPos += n
		case sam.CigarHardClipped, sam.CigarPadded:
			// consumes neither coordinate
		}
	}
	return pairs
}

func cigarSpan(cigar sam.Cigar) int {
	n := 0
	for _, co := range cigar {
		n += co.Len()
	}
	return n
}

// ExtractReadPosNAs converts one read's sequence, per-base quality (may be
// nil/empty, in which case quality defaults to 1), and aligned-pair list
// into an ordered PosNA stream. Implements spec.md §4.1.
func ExtractReadPosNAs(seq []byte, qual []byte, pairs []AlignedPair) []ObservedPosNA {
	var (
		prevRefPos int
		prevSeqIdx int
		insIdx     int
		bufferSize int
	)

	result := make([]ObservedPosNA, 0, len(pairs))
	for _, pair := range pairs {
		if !pair.RefOK && !pair.SeqOK {
			// Malformed: neither side of the pair is present. Skipping it
			// silently avoids emitting a PosNA with InsIdx>0 and Base=Gap,
			// a combination that never exists (spec.md §3).
			continue
		}

		var curPos int
		if !pair.RefOK {
			curPos = prevRefPos
			insIdx++
		} else {
			curPos = pair.RefPos + 1
			insIdx = 0
			prevRefPos = curPos
		}

		var base byte
		var q byte
		if !pair.SeqOK {
			base = Gap
			q = qualAt(qual, prevSeqIdx)
		} else {
			base = seq[pair.SeqPos]
			q = qualAt(qual, pair.SeqPos)
			prevSeqIdx = pair.SeqPos
		}

		if curPos == 0 {
			// insertion falling before the first reference position
			continue
		}

		result = append(result, ObservedPosNA{
			PosNA: PosNA{Pos: curPos, InsIdx: insIdx, Base: base},
			Qual:  q,
		})

		if insIdx > 0 {
			bufferSize++
		} else {
			bufferSize = 0
		}
	}

	// strip a trailing run of insertion-only slots: insertions hanging off
	// the read's final aligned base are unreliable.
	return result[:len(result)-bufferSize]
}

func qualAt(qual []byte, idx int) byte {
	if len(qual) == 0 {
		return 1
	}
	if idx < 0 || idx >= len(qual) {
		return 1
	}
	return qual[idx]
}
