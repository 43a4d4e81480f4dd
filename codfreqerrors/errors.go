// Package codfreqerrors defines the typed error kinds shared across the
// codfreq core (spec.md §7). Pure-algorithmic errors (ProfileInvalid,
// MalformedSegment, IncompatibleSegFreq, PositionsTooFarApart) signal
// programming bugs and are meant to be surfaced loudly; BamRead and
// CodonAlignFailure wrap external-collaborator failures and are handled
// by the orchestrator (log-and-continue, or log-and-skip).
package codfreqerrors

import "fmt"

// ProfileInvalidError is raised while loading a fragment profile.
type ProfileInvalidError struct {
	Reason string
}

func (e *ProfileInvalidError) Error() string {
	return fmt.Sprintf("profile invalid: %s", e.Reason)
}

// MalformedSegmentError signals a segment whose first node cannot be
// located (every slot is None), or a segfreq sidecar header or row that
// segfreq.Load cannot parse.
type MalformedSegmentError struct {
	Detail string
}

func (e *MalformedSegmentError) Error() string {
	if e.Detail == "" {
		return "malformed segment: no non-None slot"
	}
	return fmt.Sprintf("malformed segment: %s", e.Detail)
}

// IncompatibleSegFreqError signals SegFreq.Merge called on SegFreqs built
// with different segment_size/segment_step.
type IncompatibleSegFreqError struct {
	Reason string
}

func (e *IncompatibleSegFreqError) Error() string {
	return fmt.Sprintf("incompatible SegFreq: %s", e.Reason)
}

// PositionsTooFarApartError signals SegFreq.GetFrequency called with
// positions spanning more than one segment window.
type PositionsTooFarApartError struct {
	Positions []int
}

func (e *PositionsTooFarApartError) Error() string {
	return fmt.Sprintf("positions too far apart: %v", e.Positions)
}

// BamReadError wraps an underlying BAM-reader failure.
type BamReadError struct {
	Underlying error
}

func (e *BamReadError) Error() string {
	return fmt.Sprintf("bam read: %v", e.Underlying)
}

func (e *BamReadError) Unwrap() error { return e.Underlying }

// CodonAlignFailureError signals the pairwise assembly produced nothing to
// re-align for a fragment. codfreqio.IterCodFreq degrades this to a logged
// skip and emits the fragment's observed codons unchanged.
type CodonAlignFailureError struct {
	Fragment string
}

func (e *CodonAlignFailureError) Error() string {
	return fmt.Sprintf("codon alignment failed for fragment %q: assembly produced no alignment", e.Fragment)
}
