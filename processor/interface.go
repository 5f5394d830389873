package processor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Defaults applied when a processor does not implement the corresponding
// optional interface.
const (
	DefaultPriority = 100
	DefaultVersion  = "1.0.0"
)

// Processor is the interface that all file processors must implement.
type Processor interface {
	// Name returns the unique, human-readable name of the processor.
	Name() string

	// SupportedExtensions returns the file extensions this processor
	// handles, each including the leading dot (e.g. ".jpg").
	SupportedExtensions() []string

	// Process runs the processor against a file. The chain context carries
	// values contributed by earlier processors in the same chain run.
	Process(ctx context.Context, path string, chainCtx map[string]interface{}) (*Result, error)
}

// Prioritized is implemented by processors that control their execution
// order. Lower values run earlier.
type Prioritized interface {
	Priority() int
}

// Versioned is implemented by processors that report a version string.
type Versioned interface {
	Version() string
}

// Described is implemented by processors that provide a description.
type Described interface {
	Description() string
}

// Matcher is implemented by processors that need stricter applicability
// checks than the default extension match (e.g. size ceilings).
type Matcher interface {
	CanProcess(path string) bool
}

// Result is the outcome of a single processor invocation.
type Result struct {
	Success bool
	Message string
	// Stats carries arbitrary processor-specific measurements. The chain
	// records it verbatim and never interprets it.
	Stats map[string]interface{}
	// Context is merged into the shared chain context when the invocation
	// succeeds; later keys overwrite earlier ones.
	Context map[string]interface{}
}

// Info describes a registered processor.
type Info struct {
	Name                string   `json:"name"`
	Version             string   `json:"version"`
	Description         string   `json:"description"`
	SupportedExtensions []string `json:"supported_extensions"`
	Priority            int      `json:"priority"`
}

// PriorityOf returns the processor's priority, or DefaultPriority.
func PriorityOf(p Processor) int {
	if pr, ok := p.(Prioritized); ok {
		return pr.Priority()
	}
	return DefaultPriority
}

// VersionOf returns the processor's version, or DefaultVersion.
func VersionOf(p Processor) string {
	if v, ok := p.(Versioned); ok {
		return v.Version()
	}
	return DefaultVersion
}

// DescriptionOf returns the processor's description, or one derived from its
// supported extensions.
func DescriptionOf(p Processor) string {
	if d, ok := p.(Described); ok {
		return d.Description()
	}
	return fmt.Sprintf("Processes %s files", strings.Join(p.SupportedExtensions(), ", "))
}

// CanProcess reports whether p applies to the given path. Processors that
// implement Matcher decide for themselves; everything else gets a
// case-insensitive extension match.
func CanProcess(p Processor, path string) bool {
	if m, ok := p.(Matcher); ok {
		return m.CanProcess(path)
	}
	return MatchesExtension(p, path)
}

// MatchesExtension reports whether the path's extension is one of the
// processor's supported extensions, compared case-insensitively.
func MatchesExtension(p Processor, path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range p.SupportedExtensions() {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// InfoOf collects the registered metadata for a processor.
func InfoOf(p Processor) Info {
	return Info{
		Name:                p.Name(),
		Version:             VersionOf(p),
		Description:         DescriptionOf(p),
		SupportedExtensions: p.SupportedExtensions(),
		Priority:            PriorityOf(p),
	}
}
