// Package segfreq implements the sliding, overlapping-segment frequency
// index described in spec.md §4.2 (component C4). A SegFreq is built once
// per (sample, fragment), persisted as a CSV sidecar, and queried by the
// output producers for codon/nucleotide frequencies, consensus sequences,
// and haplotype patterns.
package segfreq

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/hivdb/codfreq/codfreqerrors"
	"github.com/hivdb/codfreq/posna"
)

const (
	// DefaultSegmentSize is the segfreq.py default (segment_size=3).
	DefaultSegmentSize = 3
	// DefaultSegmentStep is the segfreq.py default (segment_step=1).
	DefaultSegmentStep = 1
	// DefaultTopNSeeds is the default pattern seed cap.
	DefaultTopNSeeds = 10
	// DefaultConsensusLevel is the majority level for 100%-consensus.
	DefaultConsensusLevel = 1.0
)

// countedSegment pairs a Segment with its observed count and the order in
// which it was first added, so "most common, ties by first-seen order"
// iteration (the Go analogue of Python's Counter.most_common()) is
// reproducible.
type countedSegment struct {
	segment Segment
	count   int
	order   int
}

// segBucket is the per-anchor-position multiset of segments.
type segBucket struct {
	byKey map[string]*countedSegment
	order []*countedSegment // insertion order
}

func newSegBucket() *segBucket {
	return &segBucket{byKey: map[string]*countedSegment{}}
}

func (b *segBucket) add(segment Segment, count int, orderCounter *int) {
	k := segment.key()
	cs, ok := b.byKey[k]
	if !ok {
		cs = &countedSegment{segment: segment, order: *orderCounter}
		*orderCounter++
		b.byKey[k] = cs
		b.order = append(b.order, cs)
	}
	cs.count += count
}

func (b *segBucket) total() int {
	total := 0
	for _, cs := range b.order {
		total += cs.count
	}
	return total
}

// mostCommon returns the bucket's segments ordered by count descending,
// ties broken by first-seen order (ascending), matching
// collections.Counter.most_common().
func (b *segBucket) mostCommon() []*countedSegment {
	out := make([]*countedSegment, len(b.order))
	copy(out, b.order)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].count > out[j].count
	})
	return out
}

// SegFreq is the per-fragment multiset of segments that powers all
// downstream queries (spec.md §3, §4.2).
type SegFreq struct {
	SegmentSize int
	SegmentStep int

	segments  map[int]*segBucket
	maxSegPos int
	order     int
}

// New constructs an empty SegFreq. It rejects segmentStep < 1 or
// segmentSize - segmentStep < 2: the latter guarantees each segment overlaps
// its neighbor by >= 2 positions, required for pattern-stitching (§4.2.4).
func New(segmentSize, segmentStep int) (*SegFreq, error) {
	if segmentStep < 1 {
		return nil, &codfreqerrors.ProfileInvalidError{Reason: "segment step must be at least 1"}
	}
	if segmentSize-segmentStep < 2 {
		return nil, &codfreqerrors.ProfileInvalidError{Reason: "segment size must be at least segment step + 2"}
	}
	return &SegFreq{
		SegmentSize: segmentSize,
		SegmentStep: segmentStep,
		segments:    map[int]*segBucket{},
	}, nil
}

// Add appends count occurrences of segment, bucketed by the reference
// coordinate of its earliest slot.
func (sf *SegFreq) Add(segment Segment, count int) error {
	pos, ok := getSegmentPos(segment)
	if !ok {
		return &codfreqerrors.MalformedSegmentError{Detail: "every slot is None"}
	}
	bucket, ok := sf.segments[pos]
	if !ok {
		bucket = newSegBucket()
		sf.segments[pos] = bucket
	}
	bucket.add(segment.clone(), count, &sf.order)
	if pos > sf.maxSegPos {
		sf.maxSegPos = pos
	}
	return nil
}

// Merge folds every counted segment of other into sf. Both SegFreqs must
// share the same segment_size/segment_step.
func (sf *SegFreq) Merge(other *SegFreq) error {
	if sf.SegmentSize != other.SegmentSize || sf.SegmentStep != other.SegmentStep {
		return &codfreqerrors.IncompatibleSegFreqError{
			Reason: "segment_size/segment_step mismatch",
		}
	}
	for _, bucket := range other.segments {
		for _, cs := range bucket.order {
			if err := sf.Add(cs.segment, cs.count); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetFrequency returns the counts of base-combinations observed at the
// given positions (padded with successive +1s if fewer than naSize are
// given). All positions must lie within one segment window.
//
// NOTE: when the requested window start overshoots the last observed
// anchor, this clamps to the final window rather than failing. This is
// inherited, unmodified, from the original implementation's behavior; it is
// unclear whether this is intentional for end-of-fragment queries or a bug
// (spec.md §9 Open Questions). It is preserved as-is.
func (sf *SegFreq) GetFrequency(positions []int, naSize int) (map[string]int, error) {
	positions = append([]int(nil), positions...)
	for len(positions) < naSize {
		positions = append(positions, positions[len(positions)-1]+1)
	}

	segpos := positions[0]
	for _, p := range positions {
		if p < segpos {
			segpos = p
		}
	}
	segpos = segpos - mod(segpos-1, sf.SegmentStep)
	if segpos > sf.maxSegPos {
		segpos = sf.maxSegPos
	}

	for _, pos := range positions {
		if pos >= sf.maxSegPos+sf.SegmentSize {
			// current segment doesn't contain the position; skip
			continue
		}
		if pos < segpos || pos >= segpos+sf.SegmentSize {
			return nil, &codfreqerrors.PositionsTooFarApartError{Positions: positions}
		}
	}

	counts := map[string]int{}
	bucket, ok := sf.segments[segpos]
	if !ok {
		return counts, nil
	}
	for _, cs := range bucket.order {
		nas := make([]byte, 0, len(positions))
		ok := true
		for _, pos := range positions {
			accessed := false
			for _, node := range cs.segment {
				if node != nil && node.Pos == pos {
					nas = append(nas, node.Base)
					accessed = true
				} else if node != nil && node.Pos > pos {
					break
				}
			}
			if !accessed {
				ok = false
				break
			}
		}
		if ok {
			counts[string(nas)] += cs.count
		}
	}
	return counts, nil
}

// GetPosNAs returns the counts of each base (or indel string) observed at
// exactly pos, across the segment window containing pos.
func (sf *SegFreq) GetPosNAs(pos int) map[string]int {
	segpos := pos - mod(pos-1, sf.SegmentStep)
	if segpos > sf.maxSegPos {
		segpos = sf.maxSegPos
	}
	counts := map[string]int{}
	bucket, ok := sf.segments[segpos]
	if !ok {
		return counts
	}
	for _, cs := range bucket.order {
		var nas []byte
		for _, node := range cs.segment {
			if node != nil && node.Pos == pos {
				nas = append(nas, node.Base)
			}
		}
		if len(nas) > 0 {
			counts[string(nas)] += cs.count
		}
	}
	return counts
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// nodeKey identifies a slot by reference coordinate, independent of which
// segment it came from.
type nodeKey struct {
	Pos    int
	InsIdx int
}

// GetConsensus returns the majority-rule consensus PosNA stream across
// [posStart, posEnd] at the given level (0, 1]. For level < 1.0 each
// anchor's segments are taken in descending count until their cumulative
// count reaches level fraction of the anchor's total, and the bases they
// carry at each (pos, ins_idx) are IUPAC-merged together; level >= 1.0
// restricts each anchor to its single most common segment.
func (sf *SegFreq) GetConsensus(posStart, posEnd int, level float64) []posna.PosNA {
	consensus := map[nodeKey]map[posna.PosNA]int{}

	realPosStart := sf.firstAnchor(posStart)
	realPosEnd := posEnd - mod(posEnd-1, sf.SegmentStep)

	for anchor := realPosStart; anchor <= realPosEnd; anchor += sf.SegmentStep {
		bucket, ok := sf.segments[anchor]
		if !ok {
			continue
		}
		total := bucket.total()
		cumulative := 0
		for _, cs := range bucket.mostCommon() {
			for _, node := range cs.segment {
				if node == nil {
					continue
				}
				if node.Pos >= anchor+sf.SegmentStep {
					continue
				}
				if node.Pos < posStart || node.Pos > posEnd {
					continue
				}
				key := nodeKey{node.Pos, node.InsIdx}
				m, ok := consensus[key]
				if !ok {
					m = map[posna.PosNA]int{}
					consensus[key] = m
				}
				m[*node] += cs.count
			}
			cumulative += cs.count
			if level >= 1.0 || float64(cumulative) >= float64(total)*level {
				break
			}
		}
	}

	var result []posna.PosNA
	for pos := posStart; pos <= posEnd; pos++ {
		for bp := 0; ; bp++ {
			key := nodeKey{pos, bp}
			counts, ok := consensus[key]
			if !ok {
				break
			}
			var qualified []posna.PosNA
			for node := range counts {
				qualified = append(qualified, node)
			}
			if len(qualified) == 0 {
				continue
			}
			sort.Slice(qualified, func(i, j int) bool { return qualified[i].Less(qualified[j]) })
			result = append(result, posna.MergeMany(qualified))
		}
	}
	return result
}

func (sf *SegFreq) firstAnchor(posStart int) int {
	return posStart - mod(posStart-1, sf.SegmentStep)
}

// Pattern is one distinct haplotype stitched from overlapping segments,
// along with its count and fraction of the read population it represents
// (see spec.md §4.2.4; the fraction can exceed 1.0, see GetPatterns doc).
type Pattern struct {
	Nodes    []posna.PosNA
	Count    int
	Fraction float64
}

// seedEntry is one (position, masked-segment) candidate considered by the
// pattern-stitching search. pcnt is a per-mille-like integer fraction
// (count*10000/total at its anchor), kept as an integer to match the
// original implementation's integer-division rounding exactly.
type seedEntry struct {
	pos     int
	seg     Segment
	pcnt    int
	ct      int
	order   int
	deleted bool
}

// GetPatterns greedily stitches haplotype patterns: it repeatedly takes the
// highest-fraction remaining seed segment (and any segment chain-reachable
// from it via isContinuous), consuming each seed's count as it is used so
// that no read is attributed to more than one pattern step from the same
// anchor, and stops once topNSeeds distinct patterns exist. topNSeeds <= 0
// means "keep going until no seeds remain".
//
// NOTE: when two independently-selected seed chains resolve to the same
// final node set (distinctNodeKey), their pcnt/count are summed rather than
// deduplicated. This mirrors the original implementation's `+=` accumulation
// and can push a pattern's reported fraction above 1.0. This is preserved
// deliberately (spec.md §9 Open Questions) rather than "fixed", since
// de-duplicating would silently discard information about how many
// independent seed chains agree on a haplotype.
func (sf *SegFreq) GetPatterns(posStart, posEnd int, topNSeeds int) []Pattern {
	segmentStep := sf.SegmentStep
	segmentSize := sf.SegmentSize

	realPosStart := posStart - mod(posStart-1, segmentStep)
	realPosEnd := posEnd - segmentSize + 1
	realPosEnd += mod(1-realPosEnd, segmentStep)
	if realPosStart > realPosEnd {
		realPosEnd = realPosStart
	}

	segmentsBetween := map[int][]*seedEntry{}
	var allSeeds []*seedEntry
	order := 0

	for pos := realPosStart; pos <= realPosEnd; pos += segmentStep {
		bucket, ok := sf.segments[pos]
		if !ok {
			continue
		}
		total := bucket.total()
		if total == 0 {
			continue
		}
		byKey := map[string]*seedEntry{}
		for _, cs := range bucket.order {
			masked := maskSegment(cs.segment, posStart, posEnd)
			key := masked.key()
			entry, ok := byKey[key]
			if !ok {
				entry = &seedEntry{pos: pos, seg: masked, order: order}
				order++
				byKey[key] = entry
				allSeeds = append(allSeeds, entry)
				segmentsBetween[pos] = append(segmentsBetween[pos], entry)
			}
			entry.pcnt += cs.count * 10000 / total
			entry.ct += cs.count
		}
	}

	type patternAgg struct {
		nodes []posna.PosNA
		pcnt  int
		ct    int
		order int
	}
	patterns := map[string]*patternAgg{}
	var patternOrder []string
	patternOrderCounter := 0

	for {
		seed := bestSeed(allSeeds)
		if seed == nil {
			break
		}
		if topNSeeds > 0 && len(patterns) >= topNSeeds {
			break
		}

		selected := []*seedEntry{seed}
		patternPcnt, patternCount := seed.pcnt, seed.ct
		prevSeg := seed.seg

		for pos := seed.pos - segmentStep; pos >= realPosStart; pos -= segmentStep {
			next := bestContinuous(segmentsBetween[pos], prevSeg, segmentStep, false)
			if next == nil {
				goto resolved
			}
			selected = append(selected, next)
			if next.pcnt < patternPcnt {
				patternPcnt = next.pcnt
			}
			if next.ct < patternCount {
				patternCount = next.ct
			}
			prevSeg = next.seg
		}

	resolved:
		prevSeg = seed.seg
		for pos := seed.pos + segmentStep; pos <= realPosEnd; pos += segmentStep {
			next := bestContinuous(segmentsBetween[pos], prevSeg, segmentStep, true)
			if next == nil {
				break
			}
			selected = append(selected, next)
			if next.pcnt < patternPcnt {
				patternPcnt = next.pcnt
			}
			if next.ct < patternCount {
				patternCount = next.ct
			}
			prevSeg = next.seg
		}

		nodeMap := map[nodeKey]posna.PosNA{}
		for _, entry := range selected {
			for _, node := range entry.seg {
				if node == nil {
					continue
				}
				if node.Pos < posStart || node.Pos > posEnd {
					continue
				}
				nodeMap[nodeKey{node.Pos, node.InsIdx}] = *node
			}
			entry.pcnt -= patternPcnt
			entry.ct -= patternCount
			if entry.ct <= 0 {
				entry.deleted = true
			}
		}

		nodes := make([]posna.PosNA, 0, len(nodeMap))
		for _, n := range nodeMap {
			nodes = append(nodes, n)
		}
		if len(nodes) == 0 {
			continue
		}
		nodes = sortedPosNAs(nodes)
		key := posna.JoinPosNAsByValue(nodes)
		agg, ok := patterns[key]
		if !ok {
			agg = &patternAgg{nodes: nodes, order: patternOrderCounter}
			patternOrderCounter++
			patterns[key] = agg
			patternOrder = append(patternOrder, key)
		}
		agg.pcnt += patternPcnt
		agg.ct += patternCount
	}

	result := make([]Pattern, 0, len(patternOrder))
	for _, key := range patternOrder {
		agg := patterns[key]
		result = append(result, Pattern{
			Nodes:    agg.nodes,
			Count:    agg.ct,
			Fraction: float64(agg.pcnt) / 10000.0,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Fraction > result[j].Fraction
	})
	return result
}

// bestSeed returns the non-deleted seed with the highest pcnt, ties broken
// by the smallest insertion order (stable priority, no heap needed at this
// scale).
func bestSeed(seeds []*seedEntry) *seedEntry {
	var best *seedEntry
	for _, s := range seeds {
		if s.deleted || s.ct <= 0 {
			continue
		}
		if best == nil || s.pcnt > best.pcnt || (s.pcnt == best.pcnt && s.order < best.order) {
			best = s
		}
	}
	return best
}

// bestContinuous returns the highest-pcnt non-deleted candidate in
// candidates that chains onto prevSeg, or nil. rightward controls the
// isContinuous argument order (chaining to the right vs to the left).
func bestContinuous(candidates []*seedEntry, prevSeg Segment, segmentStep int, rightward bool) *seedEntry {
	var best *seedEntry
	for _, c := range candidates {
		if c.deleted || c.ct <= 0 {
			continue
		}
		var ok bool
		if rightward {
			ok = isContinuous(prevSeg, c.seg, segmentStep)
		} else {
			ok = isContinuous(c.seg, prevSeg, segmentStep)
		}
		if !ok {
			continue
		}
		if best == nil || c.pcnt > best.pcnt || (c.pcnt == best.pcnt && c.order < best.order) {
			best = c
		}
	}
	return best
}

// Dump serializes sf as CSV: two leading "# key=value" comment lines
// recording segment_size/segment_step, then a header row, then one row per
// counted segment. The "offsets" column lets Load reconstruct each slot's
// (pos, ins_idx) without re-deriving it from neighboring segments: '=' marks
// the anchor slot, '+' marks a slot that continues an insertion at the same
// reference position as its predecessor, '.' marks a slot at the next
// reference position.
func (sf *SegFreq) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# segment_size=%d\n", sf.SegmentSize); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# segment_step=%d\n", sf.SegmentStep); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"pos", "segment", "offsets", "count"}); err != nil {
		return err
	}

	anchors := make([]int, 0, len(sf.segments))
	for pos := range sf.segments {
		anchors = append(anchors, pos)
	}
	sort.Ints(anchors)

	for _, pos := range anchors {
		bucket := sf.segments[pos]
		rows := make([]*countedSegment, len(bucket.order))
		copy(rows, bucket.order)
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].segment.key() < rows[j].segment.key()
		})
		for _, cs := range rows {
			segCol := make([]byte, len(cs.segment))
			offCol := make([]byte, len(cs.segment))
			for i, node := range cs.segment {
				if node == nil {
					segCol[i] = '.'
				} else {
					segCol[i] = node.Base
				}
				switch {
				case i == 0:
					offCol[i] = '='
				case node != nil && node.InsIdx > 0:
					offCol[i] = '+'
				default:
					offCol[i] = '.'
				}
			}
			row := []string{
				strconv.Itoa(pos),
				string(segCol),
				string(offCol),
				strconv.Itoa(cs.count),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Load reconstructs a SegFreq from the format written by Dump.
func Load(r io.Reader) (*SegFreq, error) {
	br := bufio.NewReader(r)
	line1, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	line2, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}

	var segmentSize, segmentStep int
	if _, err := fmt.Sscanf(line1, "# segment_size=%d", &segmentSize); err != nil {
		return nil, &codfreqerrors.MalformedSegmentError{Detail: "missing segment_size header"}
	}
	if _, err := fmt.Sscanf(line2, "# segment_step=%d", &segmentStep); err != nil {
		return nil, &codfreqerrors.MalformedSegmentError{Detail: "missing segment_step header"}
	}

	sf, err := New(segmentSize, segmentStep)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return sf, nil
		}
		return nil, err
	}
	if len(header) != 4 || header[0] != "pos" {
		return nil, &codfreqerrors.MalformedSegmentError{Detail: "unexpected CSV header"}
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		pos, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, &codfreqerrors.MalformedSegmentError{Detail: "bad pos column"}
		}
		segCol := row[1]
		offCol := row[2]
		count, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, &codfreqerrors.MalformedSegmentError{Detail: "bad count column"}
		}
		segment, err := decodeSegment(pos, segCol, offCol)
		if err != nil {
			return nil, err
		}
		if err := sf.Add(segment, count); err != nil {
			return nil, err
		}
	}
	return sf, nil
}

func decodeSegment(anchor int, segCol, offCol string) (Segment, error) {
	if len(segCol) != len(offCol) {
		return nil, &codfreqerrors.MalformedSegmentError{Detail: "segment/offsets length mismatch"}
	}
	segment := make(Segment, len(segCol))
	prevPos := anchor
	prevInsIdx := 0
	for i := 0; i < len(segCol); i++ {
		base := segCol[i]
		off := offCol[i]
		var pos, insIdx int
		switch {
		case i == 0:
			pos, insIdx = prevPos, 0
		case off == '+':
			pos, insIdx = prevPos, prevInsIdx+1
		default:
			pos, insIdx = prevPos+1, 0
		}
		prevPos, prevInsIdx = pos, insIdx
		if base == '.' {
			segment[i] = nil
		} else {
			segment[i] = &posna.PosNA{Pos: pos, InsIdx: insIdx, Base: base}
		}
	}
	return segment, nil
}

