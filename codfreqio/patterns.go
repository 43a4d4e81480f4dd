package codfreqio

import (
	"strconv"

	"github.com/hivdb/codfreq/posna"
	"github.com/hivdb/codfreq/profile"
	"github.com/hivdb/codfreq/segfreq"
)

// PatternRecord is one record of a patterns FASTA file: either the
// reference row (one per ref range) or one observed haplotype pattern.
// Grounded on original_source/codfreq/patterns.py:iter_patterns.
type PatternRecord struct {
	Header string
	Ranges []profile.NAPosRange
	Nodes  []posna.PosNA
}

// IterPatterns returns, for each of fragment's ref ranges, a reference-row
// record followed by one record per distinct haplotype pattern
// sf.GetPatterns finds in that range, headered
// "{basename}.{idx}|count={n}|pcnt={p}%" with idx zero-padded to the width
// of the pattern count. Grounded on patterns.py:iter_patterns.
func IterPatterns(sf *segfreq.SegFreq, refSeq, refName string, fragment profile.FragmentConfig, basename string) []PatternRecord {
	if !hasOutput(fragment.Outputs, "patterns") {
		return nil
	}
	topN := segfreq.DefaultTopNSeeds
	if fragment.OutputOptions.PatternsTopNSeeds != nil {
		topN = *fragment.OutputOptions.PatternsTopNSeeds
	}

	var records []PatternRecord
	for _, r := range fragment.RefRanges {
		records = append(records, PatternRecord{
			Header: refName,
			Ranges: []profile.NAPosRange{r},
			Nodes:  buildRefNodes(refSeq, r),
		})

		patterns := sf.GetPatterns(r.Start, r.End, topN)
		digits := digitsFor(len(patterns))
		for idx, p := range patterns {
			header := basename + "." + padInt(idx+1, digits) +
				"|count=" + strconv.Itoa(p.Count) +
				"|pcnt=" + formatPercent(p.Fraction*100) + "%"
			records = append(records, PatternRecord{
				Header: header,
				Ranges: []profile.NAPosRange{r},
				Nodes:  p.Nodes,
			})
		}
	}
	return records
}

// digitsFor mirrors int(math.log10(n or 1)) + 1: the decimal digit width of
// n, or 1 when n is zero.
func digitsFor(n int) int {
	if n <= 1 {
		return 1
	}
	return len(strconv.Itoa(n))
}

func padInt(v, width int) string {
	s := strconv.Itoa(v)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// formatPercent mirrors Python's '{:g}'.format(x): the shortest decimal
// representation of x.
func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
