// Package progress carries progress reports out of long boosting runs.
package progress

// Update is one progress report from the boosting pipeline. Phase and
// SubPhase locate the work hierarchically, Current and Total measure it,
// and Details carries phase-specific metrics for observers.
type Update struct {
	// Phase identifies the high-level operation (e.g., "vqe_training",
	// "dbi_flow").
	Phase string

	// SubPhase identifies the sub-operation within a phase (e.g.,
	// "round_0", "step_2").
	SubPhase string

	// Current and Total count completed and expected work items.
	Current int
	Total   int

	// Message is a human-readable description of the current work.
	Message string

	// Details holds arbitrary metrics for the current phase. Common keys
	// are best_loss and iterations for training phases, and
	// off_diagonal_norm for flow phases.
	Details map[string]any
}

// DetailedCallback receives progress updates. A nil DetailedCallback is
// valid and is ignored by CallDetailed.
type DetailedCallback func(update Update)

// CallDetailed invokes the callback if non-nil, so producers can report
// progress unconditionally.
func CallDetailed(cb DetailedCallback, update Update) {
	if cb != nil {
		cb(update)
	}
}
