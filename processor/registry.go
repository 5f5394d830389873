package processor

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Source produces zero or more processor instances from one candidate unit
// (a registered factory set, a plugin file, ...). A source that fails to
// load is recorded against its ID and never aborts discovery of the others.
type Source interface {
	ID() string
	Load() ([]Processor, error)
}

// Stats summarizes the current state of a registry.
type Stats struct {
	TotalProcessors     int               `json:"total_processors"`
	FailedSources       int               `json:"failed_sources"`
	SupportedExtensions []string          `json:"supported_extensions"`
	PluginDirs          []string          `json:"plugin_dirs"`
	Processors          []Info            `json:"processors"`
	Failures            map[string]string `json:"failures"`
}

// Registry turns configured processor sources into a validated,
// priority-ordered processor list and answers routing queries against it.
//
// The processor list is immutable between Reload calls and safe for
// concurrent reads; Discover and Reload replace it atomically.
type Registry struct {
	mu         sync.RWMutex
	sources    []Source
	pluginDirs []string
	processors []Processor
	failures   map[string]string
	extensions map[string]struct{}
}

// NewRegistry creates a registry over the given static sources. Plugin
// directories can be added with AddPluginDir; call Discover before issuing
// queries.
func NewRegistry(sources ...Source) *Registry {
	return &Registry{
		sources:    sources,
		failures:   make(map[string]string),
		extensions: make(map[string]struct{}),
	}
}

// AddSource appends a source. It takes effect on the next Discover or
// Reload.
func (r *Registry) AddSource(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, s)
}

// AddPluginDir registers a directory that is scanned for shared-object
// plugins on every Discover and Reload.
func (r *Registry) AddPluginDir(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pluginDirs = append(r.pluginDirs, dir)
}

// Discover loads every configured source, validates the resulting
// processors, and installs the priority-sorted list. A bad source is
// recorded in the failure map and skipped; discovery never aborts early.
func (r *Registry) Discover() {
	r.mu.Lock()
	sources := make([]Source, len(r.sources))
	copy(sources, r.sources)
	dirs := make([]string, len(r.pluginDirs))
	copy(dirs, r.pluginDirs)
	r.mu.Unlock()

	for _, dir := range dirs {
		expanded, err := scanPluginDir(dir)
		if err != nil {
			log.Printf("Error scanning plugin directory %s: %v", dir, err)
			continue
		}
		sources = append(sources, expanded...)
	}

	var processors []Processor
	failures := make(map[string]string)
	seen := make(map[string]string) // processor name -> source ID

	for _, src := range sources {
		loaded, err := src.Load()
		if err != nil {
			failures[src.ID()] = err.Error()
			log.Printf("Failed to load source %s: %v", src.ID(), err)
			continue
		}

		valid := 0
		for _, p := range loaded {
			if err := Validate(p); err != nil {
				failures[src.ID()] = err.Error()
				log.Printf("Rejected processor from %s: %v", src.ID(), err)
				continue
			}
			if prev, dup := seen[p.Name()]; dup {
				failures[src.ID()] = fmt.Sprintf("duplicate processor name %q (already registered by %s)", p.Name(), prev)
				log.Printf("Rejected duplicate processor %q from %s", p.Name(), src.ID())
				continue
			}
			seen[p.Name()] = src.ID()
			processors = append(processors, p)
			valid++
		}

		if valid == 0 {
			if _, recorded := failures[src.ID()]; !recorded {
				failures[src.ID()] = "no valid processors found"
			}
		}
	}

	// Stable sort keeps discovery order for equal priorities.
	sort.SliceStable(processors, func(i, j int) bool {
		return PriorityOf(processors[i]) < PriorityOf(processors[j])
	})

	extensions := make(map[string]struct{})
	for _, p := range processors {
		for _, ext := range p.SupportedExtensions() {
			extensions[strings.ToLower(ext)] = struct{}{}
		}
	}

	r.mu.Lock()
	r.processors = processors
	r.failures = failures
	r.extensions = extensions
	r.mu.Unlock()

	log.Printf("Loaded %d processors, %d sources failed", len(processors), len(failures))
}

// Reload re-runs discovery from scratch, swapping in the new processor list
// and failure map atomically.
func (r *Registry) Reload() {
	log.Println("Reloading processors...")
	r.Discover()
}

// Validate checks a processor against the structural contract. Processors
// that fail validation are never registered.
func Validate(p Processor) error {
	if p == nil {
		return &ValidationError{Reason: "processor is nil"}
	}
	if strings.TrimSpace(p.Name()) == "" {
		return &ValidationError{Reason: "processor name must be a non-empty string"}
	}
	exts := p.SupportedExtensions()
	if len(exts) == 0 {
		return &ValidationError{Reason: "supported extensions must be a non-empty list"}
	}
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return &ValidationError{Reason: fmt.Sprintf("invalid extension %q (must start with '.')", ext)}
		}
	}
	return nil
}

// ProcessorsFor returns the processors applicable to the given path, in
// ascending priority order. A processor whose applicability check panics is
// logged and treated as not applicable; it never blocks routing for the
// others.
func (r *Registry) ProcessorsFor(path string) []Processor {
	r.mu.RLock()
	processors := r.processors
	r.mu.RUnlock()

	var applicable []Processor
	for _, p := range processors {
		if safeCanProcess(p, path) {
			applicable = append(applicable, p)
		}
	}
	return applicable
}

func safeCanProcess(p Processor, path string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Error checking if %s can process %s: %v", p.Name(), path, rec)
			ok = false
		}
	}()
	return CanProcess(p, path)
}

// ProcessorByName returns the registered processor with the given name.
func (r *Registry) ProcessorByName(name string) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.processors {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Processors returns a copy of the priority-ordered processor list.
func (r *Registry) Processors() []Processor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Processor, len(r.processors))
	copy(out, r.processors)
	return out
}

// Failures returns the source failures recorded by the last discovery,
// keyed by source ID.
func (r *Registry) Failures() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.failures))
	for k, v := range r.failures {
		out[k] = v
	}
	return out
}

// SupportedExtensions returns the sorted union of extensions across all
// registered processors, lowercased.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.extensions))
	for ext := range r.extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether any registered processor declares the path's
// extension. It is a cheap pre-filter; ProcessorsFor makes the final call.
func (r *Registry) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extensions[ext]
	return ok
}

// Stats reports the registry's current state.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.processors))
	for _, p := range r.processors {
		infos = append(infos, InfoOf(p))
	}
	failures := make(map[string]string, len(r.failures))
	for k, v := range r.failures {
		failures[k] = v
	}
	exts := make([]string, 0, len(r.extensions))
	for ext := range r.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	dirs := make([]string, len(r.pluginDirs))
	copy(dirs, r.pluginDirs)

	return Stats{
		TotalProcessors:     len(r.processors),
		FailedSources:       len(r.failures),
		SupportedExtensions: exts,
		PluginDirs:          dirs,
		Processors:          infos,
		Failures:            failures,
	}
}
