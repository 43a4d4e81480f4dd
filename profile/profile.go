// Package profile decodes the per-run fragment configuration (spec.md §6,
// component C3) and groups fragments under their reference ("main")
// fragment the way the orchestrator needs to drive per-fragment work.
package profile

import (
	"encoding/json"
	"io"

	"github.com/hivdb/codfreq/codfreqerrors"
	"github.com/hivdb/codfreq/segfreq"
)

// NAPosRange is a 1-based, inclusive nucleotide-position range on a main
// fragment's reference sequence.
type NAPosRange struct {
	Start int
	End   int
}

// UnmarshalJSON accepts the wire form `[start, end]`.
func (r *NAPosRange) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	r.Start, r.End = pair[0], pair[1]
	return nil
}

// MarshalJSON renders back to `[start, end]`.
func (r NAPosRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.Start, r.End})
}

// CodonAlignmentConfig configures one codon-aware re-alignment window
// (spec.md §4.3, component C6).
type CodonAlignmentConfig struct {
	RelRefStart          int     `json:"relRefStart"`
	RelRefEnd            int     `json:"relRefEnd"`
	WindowSize           *int    `json:"windowSize,omitempty"`
	MinGapDistance       *int    `json:"minGapDistance,omitempty"`
	RelGapPlacementScore *string `json:"relGapPlacementScore,omitempty"`
}

// OutputOptions configures how C7 renders a derived fragment's outputs.
type OutputOptions struct {
	PatternsTopNSeeds *int      `json:"patternsTopNSeeds,omitempty"`
	ConsensusLevels   []float64 `json:"consensusLevels,omitempty"`
}

// FragmentConfig is the on-the-wire union of MainFragmentConfig and
// DerivedFragmentConfig: a main fragment carries RefSequence, a derived
// fragment carries FromFragment + RefRanges. Go has no union types, so both
// shapes decode into the same struct and callers distinguish by which
// fields are populated (IsMain()).
type FragmentConfig struct {
	FragmentName string `json:"fragmentName"`

	// Main fragment fields.
	RefSequence *string `json:"refSequence,omitempty"`
	SegmentSize int     `json:"segmentSize,omitempty"`
	SegmentStep int     `json:"segmentStep,omitempty"`

	// Derived fragment fields.
	FromFragment  *string         `json:"fromFragment,omitempty"`
	GeneName      *string         `json:"geneName,omitempty"`
	RefStart      *int            `json:"refStart,omitempty"`
	RefEnd        *int            `json:"refEnd,omitempty"`
	RefRanges     []NAPosRange    `json:"refRanges,omitempty"`
	Outputs       []string        `json:"outputs,omitempty"`
	OutputOptions OutputOptions   `json:"outputOptions,omitempty"`
	CodonAlign    json.RawMessage `json:"codonAlignment,omitempty"`
}

// IsMain reports whether config describes a main (reference) fragment.
func (c FragmentConfig) IsMain() bool {
	return c.RefSequence != nil
}

var validOutputs = map[string]bool{
	"codfreq": true, "nucfreq": true, "consensus": true, "patterns": true,
}

// CodonAlignment decodes the codonAlignment field: nil (unset), false
// (explicitly disabled), or a list of per-window configs.
func (c FragmentConfig) CodonAlignment() (disabled bool, windows []CodonAlignmentConfig, err error) {
	if len(c.CodonAlign) == 0 {
		return false, nil, nil
	}
	var asBool bool
	if err := json.Unmarshal(c.CodonAlign, &asBool); err == nil {
		if asBool {
			return false, nil, &codfreqerrors.ProfileInvalidError{
				Reason: "codonAlignment must be false or a list, not true",
			}
		}
		return true, nil, nil
	}
	if err := json.Unmarshal(c.CodonAlign, &windows); err != nil {
		return false, nil, &codfreqerrors.ProfileInvalidError{
			Reason: "codonAlignment must be false or a list of window configs",
		}
	}
	return false, windows, nil
}

// SequenceAssemblyConfig names a consensus region to assemble from one or
// more derived fragments. It is decoded with the profile; no output
// producer in this module reads it.
type SequenceAssemblyConfig struct {
	Name         *string `json:"name,omitempty"`
	GeneName     *string `json:"geneName,omitempty"`
	FromFragment *string `json:"fromFragment,omitempty"`
	RefStart     *int    `json:"refStart,omitempty"`
	RefEnd       *int    `json:"refEnd,omitempty"`
}

// Profile is the top-level run configuration.
type Profile struct {
	FragmentConfig         []FragmentConfig         `json:"fragmentConfig"`
	SequenceAssemblyConfig []SequenceAssemblyConfig `json:"sequenceAssemblyConfig"`
}

// Decode parses a Profile from JSON. Unlike a blanket
// dec.DisallowUnknownFields(), decoding stays permissive throughout the
// document: spec.md §6 only requires strict rejection for `outputs`
// (an unknown output type is invalid, enforced separately by
// validateOutputs/GetRefFragments) and explicitly asks that unknown
// `outputOptions` keys be ignored, matching
// original_source/codfreq/profile.py's dict .get()-based parsing, which
// never rejects on an unrecognized key anywhere in the document.
func Decode(r io.Reader) (*Profile, error) {
	var p Profile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, &codfreqerrors.ProfileInvalidError{Reason: err.Error()}
	}
	return &p, nil
}

// RefFragment is one main fragment together with every derived fragment
// configured against it, ready for the orchestrator to drive C5-C7.
type RefFragment struct {
	Name        string
	RefSequence string
	SegmentSize int
	SegmentStep int
	Derived     []FragmentConfig
}

// GetRefFragments groups profile's fragment configs by main fragment,
// attaching each derived fragment to the main fragment it's computed from.
// Grounded on original_source/codfreq/profile.py:get_ref_fragments.
func GetRefFragments(p *Profile) ([]RefFragment, error) {
	order := make([]string, 0, len(p.FragmentConfig))
	byName := map[string]*RefFragment{}

	for _, cfg := range p.FragmentConfig {
		if !cfg.IsMain() {
			continue
		}
		segmentSize := cfg.SegmentSize
		if segmentSize == 0 {
			segmentSize = segfreq.DefaultSegmentSize
		}
		segmentStep := cfg.SegmentStep
		if segmentStep == 0 {
			segmentStep = segfreq.DefaultSegmentStep
		}
		if _, ok := byName[cfg.FragmentName]; !ok {
			order = append(order, cfg.FragmentName)
		}
		byName[cfg.FragmentName] = &RefFragment{
			Name:        cfg.FragmentName,
			RefSequence: *cfg.RefSequence,
			SegmentSize: segmentSize,
			SegmentStep: segmentStep,
		}
	}

	for _, cfg := range p.FragmentConfig {
		if cfg.IsMain() {
			continue
		}
		if cfg.FromFragment == nil {
			continue
		}
		refRanges := getRefRanges(cfg)
		if len(refRanges) == 0 {
			continue
		}
		main, ok := byName[*cfg.FromFragment]
		if !ok {
			return nil, &codfreqerrors.ProfileInvalidError{
				Reason: "derived fragment " + cfg.FragmentName + " references unknown fromFragment " + *cfg.FromFragment,
			}
		}
		if err := validateOutputs(cfg); err != nil {
			return nil, err
		}
		cfg.RefRanges = refRanges
		main.Derived = append(main.Derived, cfg)
	}

	result := make([]RefFragment, 0, len(order))
	for _, name := range order {
		result = append(result, *byName[name])
	}
	return result, nil
}

func getRefRanges(cfg FragmentConfig) []NAPosRange {
	if len(cfg.RefRanges) > 0 {
		return cfg.RefRanges
	}
	if cfg.RefStart != nil && cfg.RefEnd != nil {
		return []NAPosRange{{Start: *cfg.RefStart, End: *cfg.RefEnd}}
	}
	return nil
}

func validateOutputs(cfg FragmentConfig) error {
	outputs := cfg.Outputs
	if len(outputs) == 0 {
		outputs = []string{"codfreq"}
	}
	for _, out := range outputs {
		if !validOutputs[out] {
			return &codfreqerrors.ProfileInvalidError{
				Reason: "invalid output type " + out + " in fragment " + cfg.FragmentName,
			}
		}
	}
	if cfg.OutputOptions.PatternsTopNSeeds != nil && *cfg.OutputOptions.PatternsTopNSeeds < 0 {
		return &codfreqerrors.ProfileInvalidError{Reason: "patternsTopNSeeds must be non-negative"}
	}
	return nil
}
