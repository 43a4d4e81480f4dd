// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
codfreq reads a fragment profile (spec.md §6) and one or more aligned,
coordinate-sorted BAM files per sample and writes the codfreq/nucfreq/
consensus/patterns artifacts spec.md §4.5 describes. The FASTQ discovery,
aligner invocation, and cloud-controller surface of the original system
(spec.md §1's Non-goals) are out of scope; this binary starts from
already-aligned BAM input.
*/

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"

	"github.com/hivdb/codfreq/orchestrator"
	"github.com/hivdb/codfreq/profile"
	"github.com/hivdb/codfreq/sam2segfreq"
)

var (
	profilePath = flag.String("profile", "", "Fragment profile JSON path (required)")
	outDir      = flag.String("out", ".", "Output directory; consensus files land here, per-sample files land next to each -bam name")
	parallelism = flag.Int("parallelism", 0, "Maximum simultaneous per-shard workers; 0 = runtime.GOMAXPROCS")
	minBaseQual = flag.Int("min-base-qual", 0, "Drop segments containing a base below this quality")
)

// bamFlag accumulates repeated -bam sample:refFragment=bampath[,baipath]
// entries, grouping them into orchestrator.SampleInput values keyed by
// sample name.
type bamFlag struct {
	samples map[string]*orchestrator.SampleInput
	order   []string
}

func newBamFlag() *bamFlag {
	return &bamFlag{samples: map[string]*orchestrator.SampleInput{}}
}

func (f *bamFlag) String() string { return "" }

func (f *bamFlag) Set(value string) error {
	eq := strings.SplitN(value, "=", 2)
	if len(eq) != 2 {
		return fmt.Errorf("-bam %q: expected sample:refFragment=bampath[,baipath]", value)
	}
	sampleAndFrag, pathPart := eq[0], eq[1]
	colon := strings.SplitN(sampleAndFrag, ":", 2)
	if len(colon) != 2 {
		return fmt.Errorf("-bam %q: expected sample:refFragment before '='", value)
	}
	sampleName, fragName := colon[0], colon[1]

	bamPath := pathPart
	baiPath := pathPart + ".bai"
	if paths := strings.SplitN(pathPart, ",", 2); len(paths) == 2 {
		bamPath, baiPath = paths[0], paths[1]
	}

	sample, ok := f.samples[sampleName]
	if !ok {
		sample = &orchestrator.SampleInput{
			Name:     sampleName,
			BamPaths: map[string]string{},
			BaiPaths: map[string]string{},
		}
		f.samples[sampleName] = sample
		f.order = append(f.order, sampleName)
	}
	sample.BamPaths[fragName] = bamPath
	sample.BaiPaths[fragName] = baiPath
	return nil
}

func (f *bamFlag) toSlice() []orchestrator.SampleInput {
	out := make([]orchestrator.SampleInput, len(f.order))
	for i, name := range f.order {
		out[i] = *f.samples[name]
	}
	return out
}

func codfreqUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -profile PATH -bam sample:refFragment=bampath [-bam ...]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	bams := newBamFlag()
	flag.Var(bams, "bam", "Repeatable: sample:refFragment=bampath[,baipath]")
	flag.Usage = codfreqUsage
	shutdown := grail.Init()
	defer shutdown()

	if *profilePath == "" {
		log.Fatalf("-profile is required")
	}
	samples := bams.toSlice()
	if len(samples) == 0 {
		log.Fatalf("at least one -bam is required")
	}

	f, err := os.Open(*profilePath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	p, err := profile.Decode(f)
	f.Close()
	if err != nil {
		log.Fatalf("%v", err)
	}

	refFragments, err := profile.GetRefFragments(p)
	if err != nil {
		log.Fatalf("%v", err)
	}

	opts := orchestrator.Opts{
		OutputDir: *outDir,
		Sam2SegFreq: sam2segfreq.Opts{
			Parallelism: *parallelism,
			MinBaseQual: byte(*minBaseQual),
		},
	}
	if err := orchestrator.RunProfile(samples, refFragments, opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
