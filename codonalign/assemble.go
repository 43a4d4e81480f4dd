package codonalign

import (
	"bytes"

	"github.com/hivdb/codfreq/profile"
)

const (
	gap      = byte('-')
	delCodon = "---"
)

// AAPosToNAPos converts a 1-based amino-acid position to the 1-based
// nucleotide position of its codon's first base, across a (possibly
// discontinuous) list of reference ranges. Returns -1 if aapos falls
// outside every range. Grounded on
// original_source/codfreq/codonalign_consensus.py:aapos_to_napos.
func AAPosToNAPos(aapos int, refRanges []profile.NAPosRange) int {
	maxRelNAPos := 0
	for _, r := range refRanges {
		maxRelNAPos += r.End - r.Start + 1
		maxAAPos := maxRelNAPos / 3
		if aapos <= maxAAPos {
			relNAPos := aapos*3 - 2
			naposOffset := maxRelNAPos - relNAPos
			return r.End - naposOffset
		}
	}
	return -1
}

// CodonBlock records where one amino-acid position's paired reference/
// consensus codon sits within an AssembledAlignment's byte arrays, so a
// caller can map a nucleotide position back to an array index even though
// insertions make blocks longer than 3 bytes.
type CodonBlock struct {
	AAPos int
	// RelNAPos is aapos's nucleotide position relative to the fragment's
	// own first base (aapos*3-2): the coordinate space CodonAlignOpts'
	// RefStart/RefEnd (named relRefStart/relRefEnd on the wire) are given
	// in, per original_source/codfreq/codonalign_consensus.py's
	// seq_refstart = first_aa*3-2 convention.
	RelNAPos int
	// RefNAPos is the absolute genome position of the reference codon's
	// first base, used only to slice refSeq.
	RefNAPos int
	StartIdx int
	Length   int
}

// AssembledAlignment is the pairwise reference/consensus-codon byte
// sequence produced by AssembleAlignment, together with the amino-acid
// span it covers and the per-codon block index.
type AssembledAlignment struct {
	RefSeq   []byte
	QuerySeq []byte
	FirstAA  int
	LastAA   int
	Blocks   []CodonBlock
}

// codonAt returns refSeq's 3-byte codon starting at 1-based nucleotide
// position napos, clamped to refSeq's bounds.
func codonAt(refSeq []byte, napos int) []byte {
	start := napos - 1
	end := napos + 2
	if start < 0 {
		start = 0
	}
	if end > len(refSeq) {
		end = len(refSeq)
	}
	if start > end {
		start = end
	}
	return refSeq[start:end]
}

// AssembleAlignment walks fragmentName's amino-acid positions in order,
// pairing each reference codon with the fragment's most-common observed
// codon at that position (a pure deletion codon if none was observed), and
// concatenates them into one pairwise byte-sequence alignment. Returns
// ok=false if no codon was observed anywhere in the fragment. Grounded on
// original_source/codfreq/codonalign_consensus.py:assemble_alignment.
func AssembleAlignment(codons CounterTable, refSeq []byte, fragmentName string, refRanges []profile.NAPosRange) (*AssembledAlignment, bool) {
	refSize := 0
	for _, r := range refRanges {
		refSize += r.End - r.Start + 1
	}
	firstAA := refSize / 3
	lastAA := 0

	var fragRefSeq, fragQuerySeq []byte
	var blocks []CodonBlock

	for aapos := 1; aapos <= refSize/3; aapos++ {
		napos := AAPosToNAPos(aapos, refRanges)
		if napos == -1 {
			continue
		}
		refCodon := append([]byte(nil), codonAt(refSeq, napos)...)

		var consCodon []byte
		if counter, ok := codons[FragPos{Fragment: fragmentName, AAPos: aapos}]; ok && counter.Len() > 0 {
			consCodon = []byte(counter.MostCommon().Bytes)
			if aapos < firstAA {
				firstAA = aapos
			}
			if aapos > lastAA {
				lastAA = aapos
			}
		} else {
			consCodon = []byte(delCodon)
		}

		if len(consCodon) < 3 {
			consCodon = append(consCodon, bytes.Repeat([]byte{gap}, 3-len(consCodon))...)
		} else if len(consCodon) > 3 {
			refCodon = append(refCodon, bytes.Repeat([]byte{gap}, len(consCodon)-3)...)
		}

		blocks = append(blocks, CodonBlock{
			AAPos:    aapos,
			RelNAPos: aapos*3 - 2,
			RefNAPos: napos,
			StartIdx: len(fragRefSeq),
			Length:   len(refCodon),
		})
		fragRefSeq = append(fragRefSeq, refCodon...)
		fragQuerySeq = append(fragQuerySeq, consCodon...)
	}

	if lastAA == 0 {
		return nil, false
	}
	return &AssembledAlignment{
		RefSeq:   fragRefSeq,
		QuerySeq: fragQuerySeq,
		FirstAA:  firstAA,
		LastAA:   lastAA,
		Blocks:   blocks,
	}, true
}

// IndexRange maps a fragment-relative 1-based nucleotide range [relStart,
// relEnd] onto an index range [start, end) in RefSeq/QuerySeq, clamping to
// the assembly's own span when the requested range falls outside it
// (spec.md §4.3's "malformed codon_alignment entries... are clamped").
func (a *AssembledAlignment) IndexRange(relStart, relEnd int) (start, end int) {
	if len(a.Blocks) == 0 {
		return 0, 0
	}
	start = a.Blocks[0].StartIdx
	end = a.Blocks[len(a.Blocks)-1].StartIdx + a.Blocks[len(a.Blocks)-1].Length
	for _, b := range a.Blocks {
		if b.RelNAPos <= relStart {
			start = b.StartIdx
		}
		if b.RelNAPos <= relEnd {
			end = b.StartIdx + b.Length
		}
	}
	return start, end
}
