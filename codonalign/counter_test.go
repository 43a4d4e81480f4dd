package codonalign

import "testing"

func TestFragPosCounterMostCommonTieBreaksByInsertionOrder(t *testing.T) {
	c := NewFragPosCounter()
	c.Add("AAA", 5, 50)
	c.Add("AAC", 5, 40)
	best := c.MostCommon()
	if best == nil || best.Bytes != "AAA" {
		t.Fatalf("expected first-inserted codon to win a count tie, got %+v", best)
	}
}

func TestFragPosCounterRenameMergesIntoExisting(t *testing.T) {
	c := NewFragPosCounter()
	c.Add("AAA", 8, 80)
	c.Add("AAG", 2, 20)
	c.Rename("AAA", "AAG")

	if c.Len() != 1 {
		t.Fatalf("expected rename to merge into one entry, got %d", c.Len())
	}
	best := c.MostCommon()
	if best.Bytes != "AAG" || best.Count != 10 || best.TotalQualityScore != 100 {
		t.Errorf("unexpected merged codon: %+v", best)
	}
}

func TestFragPosCounterRenameToNewKey(t *testing.T) {
	c := NewFragPosCounter()
	c.Add("AAA", 3, 30)
	c.Rename("AAA", "AAC")
	if c.Len() != 1 {
		t.Fatalf("expected exactly one entry after rename, got %d", c.Len())
	}
	best := c.MostCommon()
	if best.Bytes != "AAC" || best.Count != 3 {
		t.Errorf("unexpected renamed codon: %+v", best)
	}
}
