package model

import "time"

// FailureKind classifies why one input record produced no rows. Every kind is
// recoverable at per-record granularity; the run continues around it.
type FailureKind string

const (
	// FailureResolution covers ambiguous or unmatched address lookups.
	FailureResolution FailureKind = "resolution"
	// FailureSourceUnavailable covers transport errors, timeouts, and
	// responses with a false completion flag.
	FailureSourceUnavailable FailureKind = "source_unavailable"
	// FailureNormalization covers malformed payloads: unparseable sale
	// dates or missing mandatory sections.
	FailureNormalization FailureKind = "normalization"
	// FailureFiltered marks records intentionally excluded by policy,
	// e.g. non-residential classification.
	FailureFiltered FailureKind = "filtered_out"
	// FailureStore covers write faults in the persistence sink, including
	// records drained after the sink has already stopped committing.
	FailureStore FailureKind = "store_failed"
)

// Failure records one excluded or failed input for the end-of-run report.
type Failure struct {
	Input  string      `json:"input"`
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
}

// Report is the end-of-run ingest summary. Attempted always equals
// Succeeded + Failed: the pipeline emits exactly one outcome per input.
type Report struct {
	RunID      string    `json:"run_id"`
	ZipCode    string    `json:"zip_code"`
	Attempted  int       `json:"attempted"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Failures   []Failure `json:"failures,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
