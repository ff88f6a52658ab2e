// Package rule implements the in-memory rule model: rules, targets,
// operator/action instances, chains, and the phase metadata that governs
// where a rule may run. The registration/lookup shape (name-keyed,
// mutex-guarded, ordered) is grounded on the teacher's system/core.Registry
// (service module registry) — here specialized to per-phase rule lists
// instead of a flat service-module map.
package rule

// Phase enumerates the fixed points in the HTTP transaction lifecycle at
// which rules run, per spec §3.
type Phase int

const (
	PhaseRequestHeader Phase = iota
	PhaseRequestBody
	PhaseResponseHeader
	PhaseResponseBody
	PhasePostProcess
	PhaseStreamRequestHeader
	PhaseStreamRequestBody
	PhaseStreamResponseHeader
	PhaseStreamResponseBody

	phaseCount
)

// String renders the phase name for logging and control-channel output.
func (p Phase) String() string {
	switch p {
	case PhaseRequestHeader:
		return "REQUEST_HEADER"
	case PhaseRequestBody:
		return "REQUEST_BODY"
	case PhaseResponseHeader:
		return "RESPONSE_HEADER"
	case PhaseResponseBody:
		return "RESPONSE_BODY"
	case PhasePostProcess:
		return "POSTPROCESS"
	case PhaseStreamRequestHeader:
		return "STREAM_REQUEST_HEADER"
	case PhaseStreamRequestBody:
		return "STREAM_REQUEST_BODY"
	case PhaseStreamResponseHeader:
		return "STREAM_RESPONSE_HEADER"
	case PhaseStreamResponseBody:
		return "STREAM_RESPONSE_BODY"
	default:
		return "UNKNOWN"
	}
}

// IsStream reports whether p is one of the stream phases, which only
// STREAM-capable operators may run in (spec §4.3, testable property 4).
func (p Phase) IsStream() bool {
	switch p {
	case PhaseStreamRequestHeader, PhaseStreamRequestBody,
		PhaseStreamResponseHeader, PhaseStreamResponseBody:
		return true
	default:
		return false
	}
}

// AllPhases returns every defined phase in a stable order, used by the
// engine to build its per-phase rule-list table.
func AllPhases() []Phase {
	phases := make([]Phase, 0, phaseCount)
	for p := Phase(0); p < phaseCount; p++ {
		phases = append(phases, p)
	}
	return phases
}
