// Package orchestrator drives the per-sample, per-fragment pipeline spec.md
// §4.6 (component C8) describes: for each sample and each main fragment, run
// the sam2segfreq driver (C5), persist its SegFreq as a sidecar, then emit
// every configured output producer (C7), running the codon re-aligner (C6)
// as part of codon-frequency emission. Grounded on
// original_source/codfreq/{codfreq,nucfreq,consensus,patterns}.py's
// save_* driving functions and
// grailbio-bio/markduplicates/mark_duplicates.go's top-level
// scan-then-dispatch shape.
package orchestrator

import (
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/hivdb/codfreq/codfreqio"
	"github.com/hivdb/codfreq/posna"
	"github.com/hivdb/codfreq/profile"
	"github.com/hivdb/codfreq/sam2segfreq"
)

// Opts configures one orchestrator run.
type Opts struct {
	OutputDir   string
	Sam2SegFreq sam2segfreq.Opts
}

// SampleInput is one sample's aligned-read inputs: a BAM/BAI pair per main
// fragment it was aligned against, plus the name prefix (which may include
// a directory) every one of its own output files is derived from, matching
// original_source/codfreq/filename_helper.py's `name` parameter.
type SampleInput struct {
	Name     string
	BamPaths map[string]string
	BaiPaths map[string]string
}

type consensusKey struct {
	gene  string
	level float64
}

// fastaEntry is a header attached to a (ranges, nodes) pair, the common
// shape both the consensus cross-sample groups and the per-sample patterns
// file need before rendering through codfreqio.WriteFastaAlignment.
type fastaEntry struct {
	header string
	ranges []profile.NAPosRange
	nodes  []posna.PosNA
}

func toFastaRecords(entries []fastaEntry) []codfreqio.FastaRecord {
	records := make([]codfreqio.FastaRecord, len(entries))
	for i, e := range entries {
		records[i] = codfreqio.FastaRecord{Header: e.header, Ranges: e.ranges, Nodes: e.nodes}
	}
	return records
}

// RunProfile drives every sample in samples across every main fragment in
// refFragments. A failure on one sample is logged and does not prevent the
// remaining samples from running (spec.md §7's "logs and continues to the
// next sample" policy); the aggregated error, if any, is returned once
// every sample (and the shared consensus output) has been attempted.
func RunProfile(samples []SampleInput, refFragments []profile.RefFragment, opts Opts) error {
	var errOnce errors.Once

	consensusGroups := map[consensusKey][]fastaEntry{}
	for _, ref := range refFragments {
		for _, derived := range ref.Derived {
			for _, rec := range codfreqio.ReferenceSequence(ref.RefSequence, derived) {
				key := consensusKey{rec.Gene, rec.Level}
				consensusGroups[key] = append(consensusGroups[key], fastaEntry{
					header: ref.Name,
					ranges: rec.Ranges,
					nodes:  rec.Nodes,
				})
			}
		}
	}

	for _, sample := range samples {
		if err := runSample(sample, refFragments, opts, consensusGroups); err != nil {
			log.Printf("orchestrator: sample %s failed: %v", sample.Name, err)
			errOnce.Set(err)
		}
	}

	if err := writeConsensusFiles(opts.OutputDir, consensusGroups); err != nil {
		log.Printf("orchestrator: failed writing consensus output: %v", err)
		errOnce.Set(err)
	}

	return errOnce.Err()
}

// runSample runs C5 through C7 for one sample across every main fragment it
// has BAM input for, accumulating codfreq/nucfreq rows across all of that
// sample's main fragments into the single combined file each gets
// (matching codfreq.py/nucfreq.py's save_* loop), writing patterns per
// derived fragment immediately, and appending this sample's consensus
// records into the shared cross-sample groups for later writing.
func runSample(sample SampleInput, refFragments []profile.RefFragment, opts Opts, consensusGroups map[consensusKey][]fastaEntry) error {
	basename := filepath.Base(sample.Name)

	var codfreqRows []codfreqio.CodonFreqRow
	var nucfreqRows []codfreqio.NucFreqRow

	for _, ref := range refFragments {
		bamPath, ok := sample.BamPaths[ref.Name]
		if !ok {
			continue
		}
		baiPath, ok := sample.BaiPaths[ref.Name]
		if !ok {
			continue
		}

		sam2segfreqOpts := opts.Sam2SegFreq
		sam2segfreqOpts.SegmentSize = ref.SegmentSize
		sam2segfreqOpts.SegmentStep = ref.SegmentStep

		sf, err := sam2segfreq.Run(bamPath, baiPath, sam2segfreqOpts)
		if err != nil {
			return err
		}

		sidecarPath := SegFreqPath(sample.Name, ref.Name)
		if err := WriteSegFreqSidecar(sidecarPath, sf); err != nil {
			return err
		}

		rows, err := codfreqio.IterCodFreq(sf, ref.RefSequence, ref.Derived)
		if err != nil {
			return err
		}
		codfreqRows = append(codfreqRows, rows...)
		nucfreqRows = append(nucfreqRows, codfreqio.IterNucFreq(sf, ref.Derived)...)

		for _, derived := range ref.Derived {
			for _, rec := range codfreqio.IterConsensus(sf, derived) {
				key := consensusKey{rec.Gene, rec.Level}
				consensusGroups[key] = append(consensusGroups[key], fastaEntry{
					header: codfreqio.ConsensusHeader(basename, rec.Gene, rec.Level),
					ranges: rec.Ranges,
					nodes:  rec.Nodes,
				})
			}

			patternRecords := codfreqio.IterPatterns(sf, ref.RefSequence, ref.Name, derived, basename)
			if len(patternRecords) == 0 {
				continue
			}
			entries := make([]fastaEntry, len(patternRecords))
			for i, rec := range patternRecords {
				entries[i] = fastaEntry{header: rec.Header, ranges: rec.Ranges, nodes: rec.Nodes}
			}
			patternsPath := PatternsPath(sample.Name, derived.FragmentName)
			if err := writeFastaFile(patternsPath, entries); err != nil {
				return err
			}
		}
	}

	if len(codfreqRows) > 0 {
		if err := writeCodFreqFile(CodFreqPath(sample.Name), codfreqRows); err != nil {
			return err
		}
	}
	if len(nucfreqRows) > 0 {
		if err := writeNucFreqFile(NucFreqPath(sample.Name), nucfreqRows); err != nil {
			return err
		}
	}
	return nil
}

func writeConsensusFiles(dirname string, groups map[consensusKey][]fastaEntry) error {
	var errOnce errors.Once
	for key, entries := range groups {
		path := ConsensusPath(dirname, key.gene, key.level)
		if err := writeFastaFile(path, entries); err != nil {
			errOnce.Set(err)
		}
	}
	return errOnce.Err()
}
