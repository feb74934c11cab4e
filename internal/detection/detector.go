// Package detection implements the two pattern detectors (layering and
// wash trading) and the plugin registry that fronts them.
package detection

import "surveillance/internal/model"

// Detector is the interface every detection algorithm implements. Instances
// must be stateless: the registry hands out the same registered instance on
// every Get (it does not construct a new one per call), so detectors carry
// no mutable cross-call state.
type Detector interface {
	// Name is the unique registry key, e.g. "layering" or "wash_trading".
	Name() string
	// Description is a human-readable summary of the pattern detected.
	Description() string
	// FilterEvents narrows the input event set before Detect runs. The
	// default for most detectors is identity; layering keeps the three
	// relevant event types, wash trading keeps TRADE_EXECUTED only.
	FilterEvents(events []model.TransactionEvent) []model.TransactionEvent
	// Detect runs the pattern search over an already-filtered event set.
	Detect(events []model.TransactionEvent) ([]model.SuspiciousSequence, error)
}
