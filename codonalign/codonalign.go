package codonalign

import (
	"github.com/hivdb/codfreq/codfreqerrors"
	"github.com/hivdb/codfreq/profile"
)

// AlignFragment runs spec.md §4.3's full codon re-alignment for one
// derived fragment: assemble the pairwise reference/consensus-codon
// alignment, apply every configured gap-re-placement window in order, then
// rewrite codons's consensus counters wherever the re-placed codon differs
// from the one originally observed. Grounded on
// original_source/codfreq/codonalign_consensus.py's per-fragment loop body.
func AlignFragment(codons CounterTable, refSeq []byte, fragment profile.FragmentConfig) error {
	disabled, windows, err := fragment.CodonAlignment()
	if err != nil {
		return err
	}
	if disabled {
		return nil
	}
	if len(windows) == 0 {
		windows = []profile.CodonAlignmentConfig{{}}
	}

	assembled, ok := AssembleAlignment(codons, refSeq, fragment.FragmentName, fragment.RefRanges)
	if !ok {
		return &codfreqerrors.CodonAlignFailureError{Fragment: fragment.FragmentName}
	}

	seqRelStart := assembled.FirstAA*3 - 2
	seqRelEnd := assembled.LastAA * 3

	for _, w := range windows {
		opts := CodonAlignOpts{
			RefStart:       seqRelStart,
			RefEnd:         seqRelEnd,
			WindowSize:     DefaultWindowSize,
			MinGapDistance: DefaultMinGapDistance,
		}
		if w.RelRefStart != 0 {
			opts.RefStart = w.RelRefStart
		}
		if w.RelRefEnd != 0 {
			opts.RefEnd = w.RelRefEnd
		}
		// Codon alignment shouldn't exceed the assembled alignment's own
		// boundary (spec.md §4.3 step 2's "restricted to" clause).
		if opts.RefStart < seqRelEnd && opts.RefEnd > seqRelStart {
			if opts.RefStart < seqRelStart {
				opts.RefStart = seqRelStart
			}
			if opts.RefEnd > seqRelEnd {
				opts.RefEnd = seqRelEnd
			}
		}
		if w.WindowSize != nil && *w.WindowSize > 0 {
			opts.WindowSize = *w.WindowSize
		}
		if w.MinGapDistance != nil && *w.MinGapDistance > 0 {
			opts.MinGapDistance = *w.MinGapDistance
		}

		if err := Realign(assembled, opts); err != nil {
			return err
		}
	}

	RewriteCounters(codons, assembled, fragment.FragmentName)
	return nil
}

// RewriteCounters reads back each aapos's re-placed codon from assembled
// and, where it differs from the counter's prior most-common codon,
// transfers that codon's count/quality mass onto the new key. Grounded on
// codonalign_consensus.py's final loop (the group_by_codons +
// most_common/pop/+= rewrite).
func RewriteCounters(codons CounterTable, assembled *AssembledAlignment, fragmentName string) {
	for _, block := range assembled.Blocks {
		if block.AAPos < assembled.FirstAA || block.AAPos > assembled.LastAA {
			continue
		}
		key := FragPos{Fragment: fragmentName, AAPos: block.AAPos}
		counter, ok := codons[key]
		if !ok || counter.Len() == 0 {
			continue
		}
		oldCodon := counter.MostCommon()
		if oldCodon == nil {
			continue
		}
		newCodon := string(assembled.QuerySeq[block.StartIdx : block.StartIdx+block.Length])
		if newCodon == oldCodon.Bytes {
			continue
		}
		counter.Rename(oldCodon.Bytes, newCodon)
	}
}
