package codfreqio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"sort"
	"strconv"

	"github.com/grailbio/base/log"

	"github.com/hivdb/codfreq/codfreqerrors"
	"github.com/hivdb/codfreq/codonalign"
	"github.com/hivdb/codfreq/profile"
	"github.com/hivdb/codfreq/segfreq"
)

// CodonFreqRow is one row of CodFreq CSV output (spec.md §4.5, §6).
type CodonFreqRow struct {
	Gene     string
	Position int
	Total    int
	Codon    string
	Count    int
}

// BuildCodonCounters walks fragment's ref ranges the same way IterCodFreq
// does, querying sf.GetFrequency for each codon-sized chunk and folding the
// result into a codonalign.CounterTable keyed by the 1-based codon index
// within the fragment's own concatenated reading frame. This is the bridge
// between the persisted SegFreq and C6's consensus-codon re-aligner, which
// operates on counters rather than the SegFreq directly. Grounded on
// original_source/codfreq/codfreq.py:iter_codfreq, adapted to build a
// counter table instead of emitting rows directly.
func BuildCodonCounters(sf *segfreq.SegFreq, fragment profile.FragmentConfig) (codonalign.CounterTable, error) {
	table := codonalign.CounterTable{}
	positions := concatPositions(fragment.RefRanges)
	aapos := 1
	for i := 0; i < len(positions); i += 3 {
		end := i + 3
		if end > len(positions) {
			end = len(positions)
		}
		freq, err := sf.GetFrequency(positions[i:end], 3)
		if err != nil {
			return nil, err
		}
		if len(freq) > 0 {
			counter := table.Get(codonalign.FragPos{Fragment: fragment.FragmentName, AAPos: aapos})
			for codon, count := range freq {
				counter.Add(codon, count, 0)
			}
		}
		aapos++
	}
	return table, nil
}

// IterCodFreq walks every fragment whose Outputs include "codfreq",
// builds its codon counters (BuildCodonCounters), runs C6's codon-aware
// re-alignment over them (a no-op when codonAlignment is false or when
// nothing was observed), then emits one row per distinct codon still
// standing: `gene, position (1-based within fragment), total, codon,
// count`. The position counter advances by one per codon regardless of
// which ref range it falls in, matching a discontiguous fragment's (e.g. a
// ribosomal-frameshift ORF) concatenated reading frame. Grounded on
// original_source/codfreq/codfreq.py:iter_codfreq and
// codonalign_consensus.py's per-fragment rewrite step.
func IterCodFreq(sf *segfreq.SegFreq, refSeq string, fragments []profile.FragmentConfig) ([]CodonFreqRow, error) {
	var rows []CodonFreqRow
	for _, fragment := range fragments {
		if !hasOutput(fragment.Outputs, "codfreq") {
			continue
		}
		table, err := BuildCodonCounters(sf, fragment)
		if err != nil {
			return nil, err
		}
		var alignErr *codfreqerrors.CodonAlignFailureError
		if err := codonalign.AlignFragment(table, []byte(refSeq), fragment); err != nil {
			if !errors.As(err, &alignErr) {
				return nil, err
			}
			// A CodonAlignFailureError means assembly found nothing to
			// re-align (spec.md §4.3's "if assembly produces an empty
			// alignment, the fragment is left untouched") — the
			// already-built counters stand as-is rather than aborting
			// output for every other fragment.
			log.Printf("codfreqio: %v; emitting observed codons unchanged", err)
		}
		rows = append(rows, rowsFromCounters(table, fragment)...)
	}
	return rows, nil
}

func rowsFromCounters(table codonalign.CounterTable, fragment profile.FragmentConfig) []CodonFreqRow {
	gene := geneName(fragment)
	var aapositions []int
	for key := range table {
		if key.Fragment == fragment.FragmentName {
			aapositions = append(aapositions, key.AAPos)
		}
	}
	sort.Ints(aapositions)

	var rows []CodonFreqRow
	for _, aapos := range aapositions {
		counter := table[codonalign.FragPos{Fragment: fragment.FragmentName, AAPos: aapos}]
		total := 0
		for _, cd := range counter.Codons() {
			total += cd.Count
		}
		for _, cd := range counter.Codons() {
			rows = append(rows, CodonFreqRow{
				Gene:     gene,
				Position: aapos,
				Total:    total,
				Codon:    cd.Bytes,
				Count:    cd.Count,
			})
		}
	}
	return rows
}

// WriteCodFreqCSV writes rows in the spec.md §6 CodFreq CSV shape: a
// leading UTF-8 BOM, header `gene,position,total,codon,count`, one row per
// observed codon. Gap-only codons appear as "---"; insertions lengthen the
// codon field, both unchanged from however GetFrequency encoded them.
func WriteCodFreqCSV(w io.Writer, rows []CodonFreqRow) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(bw)
	if err := cw.Write([]string{"gene", "position", "total", "codon", "count"}); err != nil {
		return err
	}
	for _, row := range rows {
		err := cw.Write([]string{
			row.Gene,
			strconv.Itoa(row.Position),
			strconv.Itoa(row.Total),
			row.Codon,
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
