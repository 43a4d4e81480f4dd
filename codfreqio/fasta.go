package codfreqio

import (
	"bufio"
	"io"

	"github.com/hivdb/codfreq/posna"
	"github.com/hivdb/codfreq/profile"
)

// FastaRecord is one header/sequence record for the consensus/patterns
// multi-alignment FASTA writers. Ranges bounds the fixed coordinate grid
// Nodes is rendered against, one contiguous segment at a time (so a
// discontiguous fragment's gap between ranges never appears in the
// rendered sequence): a reference position within a range with no node in
// Nodes renders as '.', matching
// original_source/codfreq/posnas.py:join_posnas's treatment of an absent
// (None) slot.
type FastaRecord struct {
	Header string
	Ranges []profile.NAPosRange
	Nodes  []posna.PosNA
}

// renderGrid lays out nodes across [posStart, posEnd], emitting every base
// found at each position (including insertions, which contribute extra
// bytes past the anchor) and '.' for a position with no node at all.
func renderGrid(posStart, posEnd int, byPos map[int][]posna.PosNA) []byte {
	out := make([]byte, 0, posEnd-posStart+1)
	for pos := posStart; pos <= posEnd; pos++ {
		ns := byPos[pos]
		if len(ns) == 0 {
			out = append(out, '.')
			continue
		}
		for _, n := range ns {
			out = append(out, n.Base)
		}
	}
	return out
}

func renderRecord(rec FastaRecord) string {
	byPos := map[int][]posna.PosNA{}
	for _, n := range rec.Nodes {
		byPos[n.Pos] = append(byPos[n.Pos], n)
	}
	var out []byte
	for _, r := range rec.Ranges {
		out = append(out, renderGrid(r.Start, r.End, byPos)...)
	}
	return string(out)
}

// WriteFastaAlignment writes records as a plain (non-BOM) UTF-8 FASTA file,
// one `>header` line followed by one sequence line per record. Grounded on
// consensus.py/patterns.py's save_* functions, which open their output
// files with encoding='UTF-8' (no BOM), unlike the CSV writers.
func WriteFastaAlignment(w io.Writer, records []FastaRecord) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		if _, err := bw.WriteString(">" + rec.Header + "\n"); err != nil {
			return err
		}
		if _, err := bw.WriteString(renderRecord(rec) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
