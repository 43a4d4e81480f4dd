package segfreq

import (
	"encoding/binary"
	"sort"
	"strings"

	"github.com/hivdb/codfreq/posna"
)

// Segment is an ordered sequence of at most segment_size slots, where each
// slot holds a PosNA observation or nil (a gap-marker meaning the position
// was not observed by this read). Segments are not fixed-length in practice:
// an inserted run of bases adds extra slots beyond the segment's "real"
// position span, which is why Segment is a slice rather than an array.
type Segment []*posna.PosNA

// clone returns an independent copy of the segment (same node pointers; the
// slice header is new).
func (s Segment) clone() Segment {
	out := make(Segment, len(s))
	copy(out, s)
	return out
}

// key returns a canonical, comparable encoding of the segment used as a map
// key for counting. It encodes the full (Pos, InsIdx, Base) identity of
// every node (or a None marker), not just a relative offset: unlike the
// spec's suggested "one byte per slot" encoding, segments here can vary in
// length because embedded insertions add slots, so a node's absolute
// position cannot always be reconstructed from its index alone. See
// DESIGN.md.
func (s Segment) key() string {
	var b strings.Builder
	var buf [8]byte
	for _, n := range s {
		if n == nil {
			b.WriteByte(0)
			continue
		}
		b.WriteByte(1)
		binary.LittleEndian.PutUint64(buf[:], uint64(n.Pos))
		b.Write(buf[:])
		binary.LittleEndian.PutUint32(buf[:4], uint32(n.InsIdx))
		b.Write(buf[:4])
		b.WriteByte(n.Base)
	}
	return b.String()
}

// equal reports whether two segments have identical node sequences.
func (s Segment) equal(other Segment) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		a, b := s[i], other[i]
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && *a != *b {
			return false
		}
	}
	return true
}

// getSegmentPos returns the reference coordinate of the earliest slot: if
// the first non-None node sits at offset i, the position is node.Pos - i.
// Returns ok=false if every slot is None (a malformed segment).
func getSegmentPos(segment Segment) (int, bool) {
	for idx, node := range segment {
		if node != nil {
			return node.Pos - idx, true
		}
	}
	return 0, false
}

// removeFirstNPos drops slots from the front of segment until n "position
// boundaries" (a None slot, or a non-insertion node) have been consumed.
func removeFirstNPos(segment Segment, n int) (Segment, bool) {
	count := 0
	for idx, node := range segment {
		if node == nil || node.InsIdx == 0 {
			count++
		}
		if count > n {
			return segment[idx:], true
		}
	}
	return nil, false
}

// removeLastNPos drops slots from the back of segment until n "position
// boundaries" have been consumed, scanning from the end.
func removeLastNPos(segment Segment, n int) (Segment, bool) {
	count := 0
	for i := len(segment) - 1; i >= 0; i-- {
		node := segment[i]
		if node == nil || node.InsIdx == 0 {
			count++
		}
		if count == n {
			return segment[:i], true
		}
	}
	return nil, false
}

// isContinuous reports whether left and right describe the same local
// haplotype when chained: left's suffix (after its leading segmentStep
// position-slots are removed) must equal right's prefix (before its
// trailing segmentStep position-slots).
func isContinuous(left, right Segment, segmentStep int) bool {
	l, ok1 := removeFirstNPos(left, segmentStep)
	r, ok2 := removeLastNPos(right, segmentStep)
	if !ok1 || !ok2 {
		return false
	}
	return l.equal(r)
}

// maskSegment returns a copy of segment with every node outside
// [minPos, maxPos] replaced by nil.
func maskSegment(segment Segment, minPos, maxPos int) Segment {
	out := make(Segment, len(segment))
	for i, node := range segment {
		if node != nil && node.Pos >= minPos && node.Pos <= maxPos {
			out[i] = node
		}
	}
	return out
}

// sortedPosNAs returns a copy of nodes sorted by the PosNA total order
// (PosNA.Less).
func sortedPosNAs(nodes []posna.PosNA) []posna.PosNA {
	out := make([]posna.PosNA, len(nodes))
	copy(out, nodes)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
