// Package posna converts a single aligned read into a canonical stream of
// (refpos, insertion_index, base, quality) observations.
//
// A PosNA never encodes a read on its own; it is always produced by walking
// a read's aligned-pair list (see BuildAlignedPairs / ExtractReadPosNAs).
package posna

import (
	"sort"

	"github.com/pkg/errors"
)

// Gap is the byte used for a deletion.
const Gap byte = '-'

// PosNA is a single observation at one reference coordinate by one read.
//
// Pos is the 1-based reference position. InsIdx is 0 for a base aligned to
// the reference and 1.. for successive bases of an insertion immediately
// following Pos. Base is one of A, C, G, T, or Gap. Quality is not part of
// PosNA identity; it is carried alongside in ObservedPosNA.
type PosNA struct {
	Pos    int
	InsIdx int
	Base   byte
}

// Less orders PosNA by (Pos, InsIdx, Base), matching the spec's total order.
func (p PosNA) Less(other PosNA) bool {
	if p.Pos != other.Pos {
		return p.Pos < other.Pos
	}
	if p.InsIdx != other.InsIdx {
		return p.InsIdx < other.InsIdx
	}
	return p.Base < other.Base
}

// SortPosNAs sorts a slice of PosNA in place by the spec's total order.
func SortPosNAs(nodes []PosNA) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Less(nodes[j]) })
}

// ObservedPosNA is a PosNA together with the quality of the observation.
// Quality defaults to 1 when the underlying read carries no quality track.
type ObservedPosNA struct {
	PosNA
	Qual byte
}

// ambiguousNAs is the forward IUPAC table: ambiguity code -> expanded bases.
var ambiguousNAs = map[byte]string{
	'W': "AT",
	'S': "CG",
	'M': "AC",
	'K': "GT",
	'R': "AG",
	'Y': "CT",
	'B': "CGT",
	'D': "AGT",
	'H': "ACT",
	'V': "ACG",
	'N': "ACGT",
}

// reversedAmbiguousNAs maps a sorted set of expanded bases back to its IUPAC
// code. It is rebuilt from ambiguousNAs since the forward table alone cannot
// answer "what symbol represents {A,C}".
var reversedAmbiguousNAs = buildReversedAmbiguousNAs()

func buildReversedAmbiguousNAs() map[string]byte {
	rev := make(map[string]byte, len(ambiguousNAs))
	for code, expansion := range ambiguousNAs {
		rev[sortedBytes(expansion)] = code
	}
	return rev
}

func sortedBytes(s string) string {
	b := []byte(s)
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	return string(b)
}

// ExpandAmbiguousNA returns the set of real bases represented by na. A plain
// base expands to itself.
func ExpandAmbiguousNA(na byte) string {
	if expansion, ok := ambiguousNAs[na]; ok {
		return expansion
	}
	return string(na)
}

// MergePosNA combines two PosNAs observed at the same (pos, ins_idx) into one
// via IUPAC ambiguity merging. A deletion in either input forces a deletion
// in the result. Mismatched pos/ins_idx is a programming error and panics,
// matching the spec's "fail fast" requirement for this invariant violation.
func MergePosNA(a, b PosNA) PosNA {
	if a.Pos != b.Pos {
		panic(errors.Errorf("cannot merge PosNA with different positions: %d != %d", a.Pos, b.Pos))
	}
	if a.InsIdx != b.InsIdx {
		panic(errors.Errorf("cannot merge PosNA with different insertion offsets: %d != %d", a.InsIdx, b.InsIdx))
	}
	if a.Base == Gap || b.Base == Gap {
		return PosNA{Pos: a.Pos, InsIdx: a.InsIdx, Base: Gap}
	}
	if a.Base == b.Base {
		return a
	}
	set := map[byte]struct{}{}
	for _, c := range ExpandAmbiguousNA(a.Base) {
		set[byte(c)] = struct{}{}
	}
	for _, c := range ExpandAmbiguousNA(b.Base) {
		set[byte(c)] = struct{}{}
	}
	merged := make([]byte, 0, len(set))
	for c := range set {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
	code, ok := reversedAmbiguousNAs[string(merged)]
	if !ok {
		// A single base set of size 1 that isn't equal (shouldn't happen,
		// guarded above), or an unrecognized combination.
		panic(errors.Errorf("no IUPAC code for base set %q", merged))
	}
	return PosNA{Pos: a.Pos, InsIdx: a.InsIdx, Base: code}
}

// MergeMany folds a non-empty slice of PosNAs observed at the same site into
// one, merging left to right.
func MergeMany(posnas []PosNA) PosNA {
	result := posnas[0]
	for _, p := range posnas[1:] {
		result = MergePosNA(result, p)
	}
	return result
}

// JoinPosNAs renders a sequence of possibly-absent PosNA slots as ASCII,
// using '.' for an unobserved slot.
func JoinPosNAs(nodes []*PosNA) string {
	out := make([]byte, len(nodes))
	for i, n := range nodes {
		if n == nil {
			out[i] = '.'
		} else {
			out[i] = n.Base
		}
	}
	return string(out)
}

// JoinPosNAsByValue returns a canonical string key identifying a sorted,
// fully-present PosNA sequence by (pos, ins_idx, base) identity. Used to
// deduplicate haplotypes that resolve to the same node set.
func JoinPosNAsByValue(nodes []PosNA) string {
	buf := make([]byte, 0, len(nodes)*13)
	var tmp [8]byte
	for _, n := range nodes {
		putUint64(&tmp, uint64(n.Pos))
		buf = append(buf, tmp[:]...)
		putUint32(&tmp, uint32(n.InsIdx))
		buf = append(buf, tmp[:4]...)
		buf = append(buf, n.Base)
	}
	return string(buf)
}

func putUint64(b *[8]byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func putUint32(b *[8]byte, v uint32) {
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
