// Package sam2segfreq builds a segfreq.SegFreq from a coordinate-sorted,
// indexed BAM file (spec.md §4.4, component C5): the per-fragment step that
// turns aligned reads into the sliding-window segment counts segfreq.SegFreq
// consumes.
//
// Grounded on original_source/codfreq/sam2segfreq.py for the
// shard/worker/merge shape, and on
// grailbio-bio/pileup/snp/pileup.go's pileupSNPMain for the
// traverse.Each-based worker pool idiom this package adopts in place of
// sam2segfreq.py's ProcessPoolExecutor.
package sam2segfreq

import (
	"io"
	"os"
	"runtime"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"

	"github.com/hivdb/codfreq/bamchunk"
	"github.com/hivdb/codfreq/codfreqerrors"
	"github.com/hivdb/codfreq/posna"
	"github.com/hivdb/codfreq/segfreq"
)

// Opts configures Run.
type Opts struct {
	// Parallelism is the number of worker goroutines; 0 or negative uses
	// runtime.GOMAXPROCS(0).
	Parallelism int
	SegmentSize int
	SegmentStep int
	// MinBaseQual, if non-zero, drops segments containing any base whose
	// observed quality is below this floor (spec.md's optional quality gate).
	MinBaseQual byte
}

// DefaultOpts matches segfreq's own defaults.
var DefaultOpts = Opts{
	SegmentSize: segfreq.DefaultSegmentSize,
	SegmentStep: segfreq.DefaultSegmentStep,
}

// Run reads every record in bamPath, already filtered/trimmed to one
// reference fragment the way the orchestrator's upstream alignment step
// produces it, and returns the resulting SegFreq. The BAM index is read
// from baiPath.
func Run(bamPath, baiPath string, opts Opts) (*segfreq.SegFreq, error) {
	numShards := opts.Parallelism
	if numShards < 1 {
		numShards = runtime.GOMAXPROCS(0)
	}

	f, err := os.Open(bamPath)
	if err != nil {
		return nil, &codfreqerrors.BamReadError{Underlying: err}
	}
	defer f.Close()

	reader, err := bam.NewReader(f, 1)
	if err != nil {
		return nil, &codfreqerrors.BamReadError{Underlying: err}
	}
	header := reader.Header()

	idxFile, err := os.Open(baiPath)
	if err != nil {
		return nil, &codfreqerrors.BamReadError{Underlying: err}
	}
	defer idxFile.Close()
	idx, err := bam.ReadIndex(idxFile)
	if err != nil {
		return nil, &codfreqerrors.BamReadError{Underlying: err}
	}

	shards := bamchunk.GenerateShards(header, numShards)
	partials := make([]*segfreq.SegFreq, len(shards))

	log.Printf("sam2segfreq: processing %s across %d shards", bamPath, len(shards))
	err = traverse.Each(len(shards), func(i int) error {
		shardFile, err := os.Open(bamPath)
		if err != nil {
			return &codfreqerrors.BamReadError{Underlying: err}
		}
		defer shardFile.Close()

		shardReader, err := bam.NewReader(shardFile, 1)
		if err != nil {
			return &codfreqerrors.BamReadError{Underlying: err}
		}

		sf, err := segfreq.New(opts.SegmentSize, opts.SegmentStep)
		if err != nil {
			return err
		}
		if err := processShard(shardReader, idx, shards[i], opts, sf); err != nil {
			return err
		}
		partials[i] = sf
		return nil
	})
	if err != nil {
		return nil, err
	}

	merged, err := segfreq.New(opts.SegmentSize, opts.SegmentStep)
	if err != nil {
		return nil, err
	}
	for _, partial := range partials {
		if err := merged.Merge(partial); err != nil {
			return nil, err
		}
	}
	log.Printf("sam2segfreq: done with %s", bamPath)
	return merged, nil
}

// processShard reads every record belonging to shard and folds its
// sliding-window segments into sf.
func processShard(reader *bam.Reader, idx *bam.Index, shard bamchunk.Shard, opts Opts, sf *segfreq.SegFreq) error {
	it, err := bamchunk.NewIterator(reader, idx, shard)
	if err != nil {
		return err
	}
	for it.Next() {
		rec := it.Record()
		if rec.Seq.Length == 0 {
			continue
		}
		if err := addReadSegments(rec, opts, sf); err != nil {
			return err
		}
	}
	if it.Err() != nil && it.Err() != io.EOF {
		return &codfreqerrors.BamReadError{Underlying: it.Err()}
	}
	return nil
}

// addReadSegments extracts one read's PosNA stream and folds every
// segment_size-wide sliding window of it into sf, mirroring
// sam2segfreq.py's sam2segfreq_between inner loop.
func addReadSegments(rec *sam.Record, opts Opts, sf *segfreq.SegFreq) error {
	seq := rec.Seq.Expand()
	qual := rec.Qual
	pairs := posna.BuildAlignedPairs(rec.Cigar, rec.Pos)
	observed := posna.ExtractReadPosNAs(seq, qual, pairs)
	if len(observed) == 0 {
		return nil
	}

	segmentSize := opts.SegmentSize
	if len(observed) < segmentSize {
		return nil
	}

	for start := 0; start+segmentSize <= len(observed); start++ {
		window := observed[start : start+segmentSize]
		if opts.MinBaseQual > 0 && windowBelowQual(window, opts.MinBaseQual) {
			continue
		}
		segment := make(segfreq.Segment, segmentSize)
		for i, o := range window {
			node := o.PosNA
			segment[i] = &node
		}
		if err := sf.Add(segment, 1); err != nil {
			return err
		}
	}
	return nil
}

func windowBelowQual(window []posna.ObservedPosNA, minQual byte) bool {
	for _, o := range window {
		if o.Qual < minQual {
			return true
		}
	}
	return false
}
