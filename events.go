package cc

// Events allows callers to handle project load and build events.
type Events interface {
	// Print logs a line of output associated with a target.
	Print(target string, line string)

	// LoadDone is called when a project finishes loading.
	LoadDone(err error)

	// TargetUpToDate is called when a target is found to be up-to-date.
	TargetUpToDate(target string)
	// TargetEvaluating is called when a target's action begins executing.
	TargetEvaluating(target string, reason string)
	// TargetFailed is called when a target fails.
	TargetFailed(target string, err error)
	// TargetSucceeded is called when a target succeeds.
	TargetSucceeded(target string, changed bool)
	// Staged is called when a target stages an artifact into a directory.
	Staged(target, artifact, dest string, size int64)
	// RunDone is called when a run finishes.
	RunDone(err error)

	// FileChanged is called during Watch when a file changes and triggers a rebuild.
	FileChanged(path string)
}

type discardEventsT int

// DiscardEvents is an implementation of Events that discards all events.
var DiscardEvents = discardEventsT(0)

func (discardEventsT) Print(target string, line string)                 {}
func (discardEventsT) LoadDone(err error)                               {}
func (discardEventsT) TargetUpToDate(target string)                     {}
func (discardEventsT) TargetEvaluating(target string, reason string)    {}
func (discardEventsT) TargetFailed(target string, err error)            {}
func (discardEventsT) TargetSucceeded(target string, changed bool)      {}
func (discardEventsT) Staged(target, artifact, dest string, size int64) {}
func (discardEventsT) RunDone(err error)                                {}
func (discardEventsT) FileChanged(path string)                          {}
