package processor

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoResult is returned when a processor produces neither a result nor an
// error.
var ErrNoResult = errors.New("processor returned no result")

// LegacyProcessFunc is the loosely-typed signature older external processors
// use: the return value may be a *Result, a map shaped like one, or any
// other value that stands in for a success message.
type LegacyProcessFunc func(path string, chainCtx map[string]interface{}) (interface{}, error)

// LegacyFunc adapts a loosely-typed processing function to the Processor
// interface. All result-shape coercion lives here; the chain itself only
// ever sees typed results.
type LegacyFunc struct {
	ProcessorName string
	Extensions    []string
	// Prio orders the adapter within a chain; the zero value means unset
	// and resolves to DefaultPriority. Adapters that must run in the
	// earliest slot set a negative priority.
	Prio int
	Fn   LegacyProcessFunc
}

func (l *LegacyFunc) Name() string                  { return l.ProcessorName }
func (l *LegacyFunc) SupportedExtensions() []string { return l.Extensions }

func (l *LegacyFunc) Priority() int {
	if l.Prio == 0 {
		return DefaultPriority
	}
	return l.Prio
}

func (l *LegacyFunc) Process(ctx context.Context, path string, chainCtx map[string]interface{}) (*Result, error) {
	out, err := l.Fn(path, chainCtx)
	if err != nil {
		return nil, err
	}
	return CoerceResult(out)
}

// CoerceResult normalizes an arbitrary return value into a Result:
//
//   - *Result passes through unchanged
//   - a map is coerced field by field (success defaults to true)
//   - nil is ErrNoResult
//   - anything else becomes a success whose message is the stringified value
func CoerceResult(v interface{}) (*Result, error) {
	switch r := v.(type) {
	case nil:
		return nil, ErrNoResult
	case *Result:
		return r, nil
	case Result:
		return &r, nil
	case map[string]interface{}:
		res := &Result{Success: true}
		if s, ok := r["success"].(bool); ok {
			res.Success = s
		}
		if m, ok := r["message"].(string); ok {
			res.Message = m
		}
		if st, ok := r["stats"].(map[string]interface{}); ok {
			res.Stats = st
		}
		if c, ok := r["context"].(map[string]interface{}); ok {
			res.Context = c
		}
		return res, nil
	default:
		return &Result{Success: true, Message: fmt.Sprintf("%v", v)}, nil
	}
}
