package orchestrator

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// SegFreqPath mirrors filename_helper.py:name_segfreq, with the zstd
// extension the sidecar carries by default (spec.md §4.2.5/SPEC_FULL.md §B).
func SegFreqPath(name, refName string) string {
	return SegFreqPlainPath(name, refName) + ".zst"
}

// SegFreqPlainPath is the uncompressed sidecar path, kept alongside
// SegFreqPath for the plain CSV contract WriteSegFreqSidecar/
// ReadSegFreqSidecar also support.
func SegFreqPlainPath(name, refName string) string {
	return fmt.Sprintf("%s.%s.segfreq", name, refName)
}

// CodFreqPath mirrors filename_helper.py:name_codfreq.
func CodFreqPath(name string) string {
	return name + ".codfreq"
}

// NucFreqPath mirrors filename_helper.py:name_nucfreq.
func NucFreqPath(name string) string {
	return name + ".nucfreq"
}

// PatternsPath mirrors filename_helper.py:name_patterns.
func PatternsPath(name, fragmentName string) string {
	return fmt.Sprintf("%s.%s-patterns.fasta", name, fragmentName)
}

// ConsensusPath mirrors filename_helper.py:name_consensus: one shared file
// per (gene, level) living in dirname rather than under any one sample's
// own name, since consensus output aggregates every sample's record.
func ConsensusPath(dirname, gene string, level float64) string {
	return filepath.Join(dirname, fmt.Sprintf("consensus-%s-%s.fasta", gene, formatLevelPercent(level)))
}

func formatLevelPercent(level float64) string {
	return strconv.FormatFloat(level*100, 'g', -1, 64)
}
