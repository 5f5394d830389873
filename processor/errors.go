package processor

import "fmt"

// ValidationError reports a processor that fails the structural contract
// checks. Processors that fail validation are never registered.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("processor validation failed: %s", e.Reason)
}

// DiscoveryError reports a source that failed to load or instantiate its
// processors. Discovery errors are isolated to the source that raised them.
type DiscoveryError struct {
	SourceID string
	Err      error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("source %s failed: %v", e.SourceID, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Error reports a processor failure during a chain run. It is captured into
// the processor's result entry and never propagated past the chain.
type Error struct {
	ProcessorName string
	FilePath      string
	Message       string
	// Timeout marks failures caused by the per-processor deadline.
	Timeout bool
}

func (e *Error) Error() string {
	s := e.Message
	if e.FilePath != "" {
		s = fmt.Sprintf("(%s) %s", e.FilePath, s)
	}
	if e.ProcessorName != "" {
		s = fmt.Sprintf("[%s] %s", e.ProcessorName, s)
	}
	return s
}
