package codfreqio

import (
	"github.com/hivdb/codfreq/posna"
	"github.com/hivdb/codfreq/profile"
	"github.com/hivdb/codfreq/segfreq"
)

// ConsensusRecord is one (gene, level) consensus sequence: either the
// fragment's own reference bases (ReferenceSequence) or a sample's observed
// consensus (IterConsensus), ready to feed into a FastaRecord once a header
// is attached. Grounded on
// original_source/codfreq/consensus.py:iter_reference/iter_consensus.
type ConsensusRecord struct {
	Gene   string
	Level  float64
	Ranges []profile.NAPosRange
	Nodes  []posna.PosNA
}

// ReferenceSequence renders fragment's own reference bases (not a sample's
// consensus) as a PosNA sequence per configured consensus level, for the
// reference-row-first FASTA convention spec.md §4.5 requires. Grounded on
// consensus.py:iter_reference.
func ReferenceSequence(refSeq string, fragment profile.FragmentConfig) []ConsensusRecord {
	if fragment.GeneName == nil || !hasOutput(fragment.Outputs, "consensus") {
		return nil
	}
	var nodes []posna.PosNA
	for _, r := range fragment.RefRanges {
		nodes = append(nodes, buildRefNodes(refSeq, r)...)
	}
	levels := consensusLevels(fragment)
	records := make([]ConsensusRecord, 0, len(levels))
	for _, level := range levels {
		records = append(records, ConsensusRecord{
			Gene:   *fragment.GeneName,
			Level:  level,
			Ranges: fragment.RefRanges,
			Nodes:  nodes,
		})
	}
	return records
}

// IterConsensus returns, for each consensus level configured on fragment
// (outputOptions.consensusLevels, default {1.0}), the consensus PosNA
// sequence across all of its ref ranges. Grounded on
// consensus.py:iter_consensus.
func IterConsensus(sf *segfreq.SegFreq, fragment profile.FragmentConfig) []ConsensusRecord {
	if fragment.GeneName == nil || !hasOutput(fragment.Outputs, "consensus") {
		return nil
	}
	levels := consensusLevels(fragment)
	records := make([]ConsensusRecord, 0, len(levels))
	for _, level := range levels {
		var nodes []posna.PosNA
		for _, r := range fragment.RefRanges {
			nodes = append(nodes, sf.GetConsensus(r.Start, r.End, level)...)
		}
		records = append(records, ConsensusRecord{
			Gene:   *fragment.GeneName,
			Level:  level,
			Ranges: fragment.RefRanges,
			Nodes:  nodes,
		})
	}
	return records
}

// ConsensusHeader formats a sample's per-record FASTA header the way
// consensus.py's save_consensus does: "{basename}|{gene}|{level*100}%".
func ConsensusHeader(basename, gene string, level float64) string {
	return basename + "|" + gene + "|" + formatPercent(level*100) + "%"
}

func consensusLevels(fragment profile.FragmentConfig) []float64 {
	levels := fragment.OutputOptions.ConsensusLevels
	if len(levels) == 0 {
		levels = []float64{segfreq.DefaultConsensusLevel}
	}
	return levels
}
