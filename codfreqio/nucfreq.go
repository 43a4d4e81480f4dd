package codfreqio

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/hivdb/codfreq/profile"
	"github.com/hivdb/codfreq/segfreq"
)

// NucFreqRow is one row of NucFreq CSV output (spec.md §4.5, §6).
type NucFreqRow struct {
	Gene     string
	Position int
	Total    int
	Nuc      string
	Count    int
}

// IterNucFreq walks every fragment whose Outputs include "nucfreq",
// querying sf.GetPosNAs one reference position at a time across each ref
// range; the emitted position is 1-based within the fragment's own
// concatenated coordinate space. Grounded on
// original_source/codfreq/nucfreq.py:iter_nucfreq.
func IterNucFreq(sf *segfreq.SegFreq, fragments []profile.FragmentConfig) []NucFreqRow {
	var rows []NucFreqRow
	for _, fragment := range fragments {
		if !hasOutput(fragment.Outputs, "nucfreq") {
			continue
		}
		gene := geneName(fragment)
		offset := 1
		for _, r := range fragment.RefRanges {
			for pos := r.Start; pos <= r.End; pos++ {
				nucfreq := sf.GetPosNAs(pos)
				total := 0
				for _, count := range nucfreq {
					total += count
				}
				for nuc, count := range nucfreq {
					rows = append(rows, NucFreqRow{
						Gene:     gene,
						Position: pos - r.Start + offset,
						Total:    total,
						Nuc:      nuc,
						Count:    count,
					})
				}
			}
			offset += r.End - r.Start + 1
		}
	}
	return rows
}

// WriteNucFreqCSV writes rows in the spec.md §6 NucFreq CSV shape: a
// leading UTF-8 BOM, header `gene,position,total,nuc,count`. Deletions
// appear as "-"; insertions appear as multi-character nucleotide strings,
// both unchanged from however GetPosNAs encoded them.
func WriteNucFreqCSV(w io.Writer, rows []NucFreqRow) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(bw)
	if err := cw.Write([]string{"gene", "position", "total", "nuc", "count"}); err != nil {
		return err
	}
	for _, row := range rows {
		err := cw.Write([]string{
			row.Gene,
			strconv.Itoa(row.Position),
			strconv.Itoa(row.Total),
			row.Nuc,
			strconv.Itoa(row.Count),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}
