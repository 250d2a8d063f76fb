package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// StepBuilder adds a step declared in a workflow file. decode fills a
// parameter struct from the step's mapping, rejecting unknown keys.
type StepBuilder func(w *Workflow, decode func(v any) error) error

// StepRegistry maps step names used in workflow files to builders.
// Registration happens before files are parsed, so no mutex is needed.
type StepRegistry struct {
	builders map[string]StepBuilder
}

// NewStepRegistry returns a registry holding the built-in steps.
func NewStepRegistry() *StepRegistry {
	r := &StepRegistry{builders: make(map[string]StepBuilder)}
	r.Register(string(KindThemeGeneration), func(w *Workflow, decode func(any) error) error {
		var opts GenerationOptions
		if err := decode(&opts); err != nil {
			return err
		}
		w.ThemeGeneration(opts)
		return nil
	})
	r.Register(string(KindSentiment), func(w *Workflow, decode func(any) error) error {
		var opts SentimentOptions
		if err := decode(&opts); err != nil {
			return err
		}
		w.Sentiment(opts)
		return nil
	})
	r.Register(string(KindThemeAllocation), func(w *Workflow, decode func(any) error) error {
		var opts AllocationOptions
		if err := decode(&opts); err != nil {
			return err
		}
		w.ThemeAllocation(opts)
		return nil
	})
	r.Register(string(KindThemeExtraction), func(w *Workflow, decode func(any) error) error {
		var opts ExtractionOptions
		if err := decode(&opts); err != nil {
			return err
		}
		w.ThemeExtraction(opts)
		return nil
	})
	r.Register(string(KindCluster), func(w *Workflow, decode func(any) error) error {
		var opts ClusterOptions
		if err := decode(&opts); err != nil {
			return err
		}
		w.Cluster(opts)
		return nil
	})
	return r
}

// Register adds or replaces the builder for name.
func (r *StepRegistry) Register(name string, b StepBuilder) {
	r.builders[name] = b
}

// Names returns the registered step names, sorted.
func (r *StepRegistry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for n := range r.builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewStepRegistry()

// RegisterStep adds a step builder to the registry used by ParseWorkflow
// and LoadWorkflowFile. Call it from init.
func RegisterStep(name string, b StepBuilder) {
	defaultRegistry.Register(name, b)
}

type workflowFile struct {
	Sources  map[string]yaml.Node `yaml:"sources"`
	Pipeline []yaml.Node          `yaml:"pipeline"`
}

// LoadWorkflowFile reads a workflow from a .yaml, .yml or .json file.
func LoadWorkflowFile(path string) (*Workflow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("unsupported workflow file type: %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workflow: %w", err)
	}
	defer f.Close()

	w, err := ParseWorkflow(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// ParseWorkflow reads a workflow document using the default registry.
func ParseWorkflow(r io.Reader) (*Workflow, error) {
	return defaultRegistry.Parse(r)
}

// Parse reads a workflow document: a top-level pipeline list of single-key
// mappings naming a registered step and its parameters, and an optional
// sources mapping of alias to list. Unknown steps, malformed entries and
// unknown parameters are rejected.
func (r *StepRegistry) Parse(src io.Reader) (*Workflow, error) {
	dec := yaml.NewDecoder(src)
	dec.KnownFields(true)
	var doc workflowFile
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Msg: "empty workflow document"}
		}
		return nil, fmt.Errorf("parse workflow: %w", err)
	}

	w := NewWorkflow()
	aliases := make([]string, 0, len(doc.Sources))
	for alias := range doc.Sources {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		node := doc.Sources[alias]
		var data any
		if err := node.Decode(&data); err != nil {
			return nil, fmt.Errorf("source %q: %w", alias, err)
		}
		w.Source(alias, data)
	}

	for i, node := range doc.Pipeline {
		if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
			return nil, &ConfigError{Msg: fmt.Sprintf("pipeline entry %d (line %d): want a mapping with exactly one step", i+1, node.Line)}
		}
		name := node.Content[0].Value
		b, ok := r.builders[name]
		if !ok {
			return nil, &ConfigError{Step: name, Msg: fmt.Sprintf("unknown pipeline step (line %d)", node.Line)}
		}
		params := node.Content[1]
		if err := b(w, strictDecoder(params)); err != nil {
			return nil, &ConfigError{Step: name, Msg: fmt.Sprintf("pipeline entry %d: %v", i+1, err)}
		}
	}
	if err := w.Err(); err != nil {
		return nil, err
	}
	return w, nil
}

// strictDecoder decodes node into a struct, failing on unknown keys. A null
// or empty node leaves the struct at its zero value.
func strictDecoder(node *yaml.Node) func(any) error {
	return func(v any) error {
		if node.Kind == 0 || node.Tag == "!!null" {
			return nil
		}
		b, err := yaml.Marshal(node)
		if err != nil {
			return err
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
}
