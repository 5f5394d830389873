package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
)

// Factory constructs a processor instance. Factories run during discovery;
// a factory error marks its source as failed.
type Factory func() (Processor, error)

// FactorySource is a candidate unit backed by registered constructors. It is
// the build-time equivalent of a plugin file: one source, zero or more
// processors.
type FactorySource struct {
	SourceID  string
	Factories []Factory
}

// NewFactorySource bundles factories under a source identifier.
func NewFactorySource(id string, factories ...Factory) *FactorySource {
	return &FactorySource{SourceID: id, Factories: factories}
}

// FromInstances wraps already-constructed processors as a source.
func FromInstances(id string, processors ...Processor) *FactorySource {
	factories := make([]Factory, 0, len(processors))
	for _, p := range processors {
		p := p
		factories = append(factories, func() (Processor, error) { return p, nil })
	}
	return NewFactorySource(id, factories...)
}

func (s *FactorySource) ID() string { return s.SourceID }

func (s *FactorySource) Load() ([]Processor, error) {
	processors := make([]Processor, 0, len(s.Factories))
	for _, factory := range s.Factories {
		p, err := instantiate(factory)
		if err != nil {
			return nil, err
		}
		processors = append(processors, p)
	}
	return processors, nil
}

// instantiate runs a factory, converting panics into load errors so one bad
// constructor cannot take down discovery.
func instantiate(factory Factory) (p Processor, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("factory panicked: %v", rec)
		}
	}()
	return factory()
}

// pluginFileSource loads processors from a Go shared-object plugin. The
// plugin must export New with the signature func() []Processor or
// func() Processor.
type pluginFileSource struct {
	path string
}

func (s *pluginFileSource) ID() string { return filepath.Base(s.path) }

func (s *pluginFileSource) Load() ([]Processor, error) {
	p, err := plugin.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin: %w", err)
	}

	newSymbol, err := p.Lookup("New")
	if err != nil {
		return nil, fmt.Errorf("plugin does not export New: %w", err)
	}

	switch newFunc := newSymbol.(type) {
	case func() []Processor:
		return newFunc(), nil
	case func() Processor:
		return []Processor{newFunc()}, nil
	default:
		return nil, fmt.Errorf("plugin New symbol has wrong type")
	}
}

// scanPluginDir expands a directory into one source per shared-object file.
// A missing directory is not an error; it simply yields no sources.
func scanPluginDir(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sources []Source
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".so" {
			continue
		}
		sources = append(sources, &pluginFileSource{path: filepath.Join(dir, entry.Name())})
	}
	return sources, nil
}
