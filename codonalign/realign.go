package codonalign

import (
	"github.com/biogo/biogo/align"
	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/seq/linear"
)

const (
	matchScore    = 1
	mismatchScore = -1
	gapScore      = -2

	// DefaultWindowSize and DefaultMinGapDistance mirror
	// codonalign_consensus.py's CODON_ALIGN_WINDOW_SIZE (10 codons) and
	// CODON_ALIGN_MIN_GAP_DISTANCE (30 nucleotides).
	DefaultWindowSize     = 10
	DefaultMinGapDistance = 30
)

// CodonAlignOpts configures one gap-re-placement window (spec.md §4.3
// step 2), corresponding to one entry of a fragment's codon_alignment
// list.
type CodonAlignOpts struct {
	// RefStart/RefEnd are the 1-based, inclusive reference nucleotide
	// positions the re-placement is restricted to.
	RefStart       int
	RefEnd         int
	WindowSize     int
	MinGapDistance int
}

// newNWMatrix builds the gap+ACGT scoring matrix align.NW expects, in the
// shape of kortschak-loopy/cmd/catch's makeTable but tuned for global
// (Needleman-Wunsch) re-alignment of a short codon window.
func newNWMatrix() align.NW {
	alpha := alphabet.DNAgapped
	nw := make(align.NW, alpha.Len())
	for i := range nw {
		row := make([]int, alpha.Len())
		for j := range row {
			if i == j {
				row[j] = matchScore
			} else {
				row[j] = mismatchScore
			}
		}
		nw[i] = row
	}
	for i := range nw {
		nw[0][i] = gapScore
		nw[i][0] = gapScore
	}
	return nw
}

// stripGaps removes gap bytes, returning the underlying ungapped sequence.
func stripGaps(seq []byte) []byte {
	out := make([]byte, 0, len(seq))
	for _, b := range seq {
		if b != gap {
			out = append(out, b)
		}
	}
	return out
}

// windowRealign re-derives a gapped pairwise alignment of ref/query's
// underlying (gap-stripped) bases via Needleman-Wunsch global alignment,
// using align.NW the way kortschak-loopy/cmd/catch uses align.SW: build
// linear.Seq values over alphabet.DNAgapped, align, then recover the two
// gapped rows with align.Format.
func windowRealign(ref, query []byte) (refGapped, queryGapped []byte, err error) {
	refRaw := stripGaps(ref)
	queryRaw := stripGaps(query)

	a := linear.NewSeq("ref", alphabet.BytesToLetters(refRaw), alphabet.DNAgapped)
	b := linear.NewSeq("query", alphabet.BytesToLetters(queryRaw), alphabet.DNAgapped)

	nw := newNWMatrix()
	aln, err := nw.Align(a, b)
	if err != nil {
		return nil, nil, err
	}
	fa := align.Format(a, b, aln, alphabet.Letter(gap))
	return []byte(fa[0].(alphabet.Letters)), []byte(fa[1].(alphabet.Letters)), nil
}

// gapRun is a maximal run of gap bytes in one of the two aligned rows.
type gapRun struct {
	start, end int // [start, end) into the shared index space
	onQuery    bool
}

func findGapRuns(ref, query []byte) []gapRun {
	var runs []gapRun
	n := len(ref)
	i := 0
	for i < n {
		switch {
		case ref[i] == gap:
			j := i
			for j < n && ref[j] == gap {
				j++
			}
			runs = append(runs, gapRun{start: i, end: j, onQuery: false})
			i = j
		case query[i] == gap:
			j := i
			for j < n && query[j] == gap {
				j++
			}
			runs = append(runs, gapRun{start: i, end: j, onQuery: true})
			i = j
		default:
			i++
		}
	}
	return runs
}

// nearestCodonBoundary returns the multiple of 3 (relative to base)
// nearest to idx.
func nearestCodonBoundary(idx, base int) int {
	rel := idx - base
	mod := rel % 3
	if mod < 0 {
		mod += 3
	}
	if mod == 0 {
		return idx
	}
	down := idx - mod
	up := down + 3
	if mod <= 1 {
		return down
	}
	return up
}

// shiftSafe reports whether sliding a gap run in `gapped` (with `other` as
// its non-gapped counterpart) from its current [start,end) to a new start
// position newStart is lossless: the classical indel-normalization
// condition that the bases being swept past the gap are identical to the
// bases that will newly sit in the vacated slots, so the substitution
// score is unchanged by the slide.
func shiftSafe(other []byte, start, end, newStart int) bool {
	length := end - start
	if newStart == start {
		return true
	}
	if newStart < start {
		delta := start - newStart
		for i := 0; i < delta; i++ {
			if other[newStart+i] != other[start+length-delta+i] {
				return false
			}
		}
		return true
	}
	delta := newStart - start
	for i := 0; i < delta; i++ {
		if other[start+i] != other[end+i] {
			return false
		}
	}
	return true
}

// applyShift moves the gap run [start,end) in `gapped` to [newStart,
// newStart+length), sliding `gapped`'s own bases across the slots the gap
// leaves, so `gapped` keeps its base sequence. `other` is not modified.
// Both rows keep their original length.
func applyShift(gapped, other []byte, start, end, newStart int) {
	length := end - start
	if newStart == start {
		return
	}
	if newStart < start {
		copy(gapped[newStart+length:start+length], gapped[newStart:start])
		for i := newStart; i < newStart+length; i++ {
			gapped[i] = gap
		}
	} else {
		copy(gapped[start:newStart], gapped[end:newStart+length])
		for i := newStart; i < newStart+length; i++ {
			gapped[i] = gap
		}
	}
}

// snapToCodonBoundaries nudges every gap run in [winStart, winEnd) toward
// the nearest codon boundary (a multiple of 3 measured from winStart) when
// doing so is lossless and keeps at least minGapDistance nucleotides
// between the shifted run and its neighbors / the window edges. Runs that
// can't be safely shifted are left where NW placed them.
func snapToCodonBoundaries(ref, query []byte, winStart, winEnd, minGapDistance int) {
	runs := findGapRuns(ref[winStart:winEnd], query[winStart:winEnd])
	for idx := range runs {
		runs[idx].start += winStart
		runs[idx].end += winStart
	}

	for i, run := range runs {
		target := nearestCodonBoundary(run.start, winStart)
		if target == run.start {
			continue
		}
		if target < winStart || target+(run.end-run.start) > winEnd {
			continue
		}
		if i > 0 && target-runs[i-1].end < minGapDistance {
			continue
		}
		if i < len(runs)-1 && runs[i+1].start-(target+(run.end-run.start)) < minGapDistance {
			continue
		}

		gapped, other := ref, query
		if run.onQuery {
			gapped, other = query, ref
		}
		if !shiftSafe(other, run.start, run.end, target) {
			continue
		}
		applyShift(gapped, other, run.start, run.end, target)
	}
}

// Realign applies spec.md §4.3 step 2's codon-aware gap re-placement to
// alignment's [opts.RefStart, opts.RefEnd] window: re-derive a gapless
// global alignment of the window's underlying bases via align.NW, then
// shift its gaps onto codon boundaries wherever that's lossless. The exact
// scoring of ambiguous placements (the rel_gap_placement_score table) is
// left unspecified upstream of this adapter; ties are broken by
// nearest-boundary distance alone.
func Realign(alignment *AssembledAlignment, opts CodonAlignOpts) error {
	windowSize := opts.WindowSize
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	minGapDistance := opts.MinGapDistance
	if minGapDistance <= 0 {
		minGapDistance = DefaultMinGapDistance
	}

	start, end := alignment.IndexRange(opts.RefStart, opts.RefEnd)
	if start >= end {
		return nil
	}

	refWindow := append([]byte(nil), alignment.RefSeq[start:end]...)
	queryWindow := append([]byte(nil), alignment.QuerySeq[start:end]...)

	refGapped, queryGapped, err := windowRealign(refWindow, queryWindow)
	if err != nil {
		return err
	}
	if len(refGapped) != len(queryGapped) {
		return nil
	}

	snapToCodonBoundaries(refGapped, queryGapped, 0, len(refGapped), minGapDistance)

	if len(refGapped) == end-start {
		copy(alignment.RefSeq[start:end], refGapped)
		copy(alignment.QuerySeq[start:end], queryGapped)
	}
	return nil
}
