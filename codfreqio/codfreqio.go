// Package codfreqio renders a SegFreq's codon/nucleotide/consensus/pattern
// queries into the file formats spec.md §4.5 (component C7) describes, given
// a derived fragment's configuration. Grounded on
// original_source/codfreq/{codfreq,nucfreq,consensus,patterns}.py.
package codfreqio

import (
	"github.com/hivdb/codfreq/posna"
	"github.com/hivdb/codfreq/profile"
)

// bom is the UTF-8 byte-order mark the CodFreq/NucFreq CSV writers emit,
// matching nucfreq.py/codfreq.py's ENCODING = 'UTF-8-sig'.
var bom = []byte{0xEF, 0xBB, 0xBF}

func hasOutput(outputs []string, want string) bool {
	if len(outputs) == 0 {
		// profile.validateOutputs defaults an empty outputs list to
		// {"codfreq"} without mutating the stored config; mirror that
		// default here rather than requiring every caller to pre-expand it.
		return want == "codfreq"
	}
	for _, o := range outputs {
		if o == want {
			return true
		}
	}
	return false
}

func geneName(fragment profile.FragmentConfig) string {
	if fragment.GeneName != nil {
		return *fragment.GeneName
	}
	return ""
}

func concatPositions(ranges []profile.NAPosRange) []int {
	var positions []int
	for _, r := range ranges {
		for pos := r.Start; pos <= r.End; pos++ {
			positions = append(positions, pos)
		}
	}
	return positions
}

// buildRefNodes renders refSeq's own bases across r as a dense PosNA
// sequence (one node per position, no insertions), the reference row every
// consensus/pattern FASTA output is prefixed with.
func buildRefNodes(refSeq string, r profile.NAPosRange) []posna.PosNA {
	start := r.Start - 1
	end := r.End
	if start < 0 {
		start = 0
	}
	if end > len(refSeq) {
		end = len(refSeq)
	}
	if start > end {
		return nil
	}
	nodes := make([]posna.PosNA, 0, end-start)
	for i := start; i < end; i++ {
		nodes = append(nodes, posna.PosNA{Pos: r.Start + (i - start), InsIdx: 0, Base: refSeq[i]})
	}
	return nodes
}
