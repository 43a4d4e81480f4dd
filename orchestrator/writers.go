package orchestrator

import (
	"os"

	"github.com/hivdb/codfreq/codfreqio"
)

func writeCodFreqFile(path string, rows []codfreqio.CodonFreqRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return codfreqio.WriteCodFreqCSV(f, rows)
}

func writeNucFreqFile(path string, rows []codfreqio.NucFreqRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return codfreqio.WriteNucFreqCSV(f, rows)
}

func writeFastaFile(path string, entries []fastaEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return codfreqio.WriteFastaAlignment(f, toFastaRecords(entries))
}
