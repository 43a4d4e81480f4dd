package codfreqio

import "sort"

// codonTable maps an unambiguous DNA codon to its single-letter amino acid
// (or "*" for a stop codon). Grounded on
// original_source/codfreq/codonutils.py's CODON_TABLE.
var codonTable = map[string]byte{
	"TTT": 'F', "TTC": 'F', "TTA": 'L', "TTG": 'L',
	"CTT": 'L', "CTC": 'L', "CTA": 'L', "CTG": 'L',
	"ATT": 'I', "ATC": 'I', "ATA": 'I', "ATG": 'M',
	"GTT": 'V', "GTC": 'V', "GTA": 'V', "GTG": 'V',
	"TCT": 'S', "TCC": 'S', "TCA": 'S', "TCG": 'S',
	"CCT": 'P', "CCC": 'P', "CCA": 'P', "CCG": 'P',
	"ACT": 'T', "ACC": 'T', "ACA": 'T', "ACG": 'T',
	"GCT": 'A', "GCC": 'A', "GCA": 'A', "GCG": 'A',
	"TAT": 'Y', "TAC": 'Y',
	"CAT": 'H', "CAC": 'H', "CAA": 'Q', "CAG": 'Q',
	"AAT": 'N', "AAC": 'N', "AAA": 'K', "AAG": 'K',
	"GAT": 'D', "GAC": 'D', "GAA": 'E', "GAG": 'E',
	"TGT": 'C', "TGC": 'C', "TGG": 'W',
	"CGT": 'R', "CGC": 'R', "CGA": 'R', "CGG": 'R',
	"AGT": 'S', "AGC": 'S', "AGA": 'R', "AGG": 'R',
	"GGT": 'G', "GGC": 'G', "GGA": 'G', "GGG": 'G',
	"TAA": '*', "TGA": '*', "TAG": '*',
}

// ambiguousNAs expands an IUPAC ambiguity code to its member bases.
// Grounded on codonutils.py's AMBIGUOUS_NAS.
var ambiguousNAs = map[byte]string{
	'W': "AT", 'S': "CG", 'M': "AC", 'K': "GT", 'R': "AG", 'Y': "CT",
	'B': "CGT", 'D': "AGT", 'H': "ACT", 'V': "ACG", 'N': "ACGT",
}

func expandNA(na byte) string {
	if exp, ok := ambiguousNAs[na]; ok {
		return exp
	}
	return string(na)
}

// TranslateCodon translates a 3-nucleotide codon, possibly carrying IUPAC
// ambiguity codes or gap bytes, into its amino acid(s): a single letter for
// an unambiguous codon, or the sorted set of letters every expansion of an
// ambiguous codon can produce. Gap bytes are treated as 'N' (fully
// ambiguous), matching codonutils.py's nas.replace(b'-', b'N'). Returns ""
// for a codon whose length isn't exactly 3 (spec.md's non-goal: this is a
// derived formatting helper, never a primary output, so out-of-frame
// fragments are simply left untranslated rather than approximated). Grounded
// on codonutils.py:translate_codon.
func TranslateCodon(codon string) string {
	if len(codon) != 3 {
		return ""
	}
	nas := make([]byte, 3)
	for i := 0; i < 3; i++ {
		if codon[i] == '-' {
			nas[i] = 'N'
		} else {
			nas[i] = codon[i]
		}
	}
	if aa, ok := codonTable[string(nas)]; ok {
		return string(aa)
	}

	set := map[byte]struct{}{}
	for _, na0 := range expandNA(nas[0]) {
		for _, na1 := range expandNA(nas[1]) {
			for _, na2 := range expandNA(nas[2]) {
				if aa, ok := codonTable[string([]byte{byte(na0), byte(na1), byte(na2)})]; ok {
					set[aa] = struct{}{}
				}
			}
		}
	}
	aas := make([]byte, 0, len(set))
	for aa := range set {
		aas = append(aas, aa)
	}
	sort.Slice(aas, func(i, j int) bool { return aas[i] < aas[j] })
	return string(aas)
}
