// Package codonalign implements the codon-aware consensus re-aligner
// (spec.md §4.3, component C6): it rewrites a fragment's per-codon
// consensus counters so that indels introduced by an upstream,
// frame-agnostic aligner land on codon boundaries.
//
// Grounded on original_source/codfreq/codonalign_consensus.py.
package codonalign

// FragPos identifies one derived fragment's amino-acid position, the key
// the consensus-codon counters are organized by.
type FragPos struct {
	Fragment string
	AAPos    int
}

// Codon is one observed codon at a FragPos, carrying both the observation
// count and the summed per-observation quality score. The original keeps
// these as two parallel Counter[codon] tables (codonstat_by_fragpos,
// qualities_by_fragpos); merging them into one struct per codon is the
// natural Go shape for what's otherwise an error-prone two-map update in
// lockstep.
type Codon struct {
	Bytes             string
	Count             int
	TotalQualityScore int
}

// FragPosCounter is an insertion-ordered multiset of codons observed at one
// FragPos. Ties in MostCommon break by insertion order, matching Python's
// Counter.most_common. Shaped after segfreq's segBucket.
type FragPosCounter struct {
	byCodon map[string]*Codon
	order   []*Codon
}

// NewFragPosCounter returns an empty counter.
func NewFragPosCounter() *FragPosCounter {
	return &FragPosCounter{byCodon: map[string]*Codon{}}
}

// Add folds one observation of codon into the counter.
func (c *FragPosCounter) Add(codon string, count, qualityScore int) {
	cd, ok := c.byCodon[codon]
	if !ok {
		cd = &Codon{Bytes: codon}
		c.byCodon[codon] = cd
		c.order = append(c.order, cd)
	}
	cd.Count += count
	cd.TotalQualityScore += qualityScore
}

// MostCommon returns the highest-count codon, nil if the counter is empty.
func (c *FragPosCounter) MostCommon() *Codon {
	var best *Codon
	for _, cd := range c.order {
		if best == nil || cd.Count > best.Count {
			best = cd
		}
	}
	return best
}

// Len reports the number of distinct codons observed.
func (c *FragPosCounter) Len() int { return len(c.order) }

// Codons returns every distinct codon observed, in insertion order.
func (c *FragPosCounter) Codons() []*Codon { return c.order }

// Rename transfers oldCodon's count/quality mass onto newCodon (summed if
// newCodon already has observations) and removes oldCodon. A no-op if
// oldCodon is absent or equals newCodon. Grounded on
// codonalign_consensus.py's counter-rewrite step:
//   codons[newcodon] += codons.pop(oldcodon)
func (c *FragPosCounter) Rename(oldCodon, newCodon string) {
	if oldCodon == newCodon {
		return
	}
	old, ok := c.byCodon[oldCodon]
	if !ok {
		return
	}
	if existing, ok := c.byCodon[newCodon]; ok {
		existing.Count += old.Count
		existing.TotalQualityScore += old.TotalQualityScore
	} else {
		c.byCodon[newCodon] = &Codon{
			Bytes:             newCodon,
			Count:             old.Count,
			TotalQualityScore: old.TotalQualityScore,
		}
		c.order = append(c.order, c.byCodon[newCodon])
	}
	delete(c.byCodon, oldCodon)
	for i, cd := range c.order {
		if cd == old {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// CounterTable is `(fragment, aapos) -> codon counter`, the data structure
// codfreqio.BuildCodonCounters fills and codonalign rewrites in place.
type CounterTable map[FragPos]*FragPosCounter

// Get returns the counter at key, creating it if absent.
func (t CounterTable) Get(key FragPos) *FragPosCounter {
	c, ok := t[key]
	if !ok {
		c = NewFragPosCounter()
		t[key] = c
	}
	return c
}
