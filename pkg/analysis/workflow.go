package analysis

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/researchwiseai/pulse-go/pkg/pulse"
)

// DatasetSource is the alias of the dataset passed to Run.
const DatasetSource = "dataset"

// Step is a process placed in a workflow.
type Step struct {
	ID      string
	Process Process
	// Input is the alias of the source the step reads; empty means the
	// dataset.
	Input string
	// ThemesFrom is the alias the theme vocabulary is read from.
	ThemesFrom string
}

// Workflow builds an ordered list of steps over the dataset and named
// sources. Builder methods record configuration errors instead of failing;
// Err and Run report them before any request is made.
type Workflow struct {
	sources map[string]any
	steps   []*Step
	counts  map[Kind]int
	errs    []error
}

// NewWorkflow returns an empty workflow.
func NewWorkflow() *Workflow {
	return &Workflow{
		sources: make(map[string]any),
		counts:  make(map[Kind]int),
	}
}

// GenerationOptions configures a theme generation step.
type GenerationOptions struct {
	MinThemes int    `yaml:"min_themes" json:"min_themes"`
	MaxThemes int    `yaml:"max_themes" json:"max_themes"`
	Fast      *bool  `yaml:"fast" json:"fast"`
	Source    string `yaml:"source" json:"source"`
	Name      string `yaml:"name" json:"name"`
}

// SentimentOptions configures a sentiment step. Source may name a nested
// list of texts; labels are then returned in the same shape.
type SentimentOptions struct {
	Fast   *bool  `yaml:"fast" json:"fast"`
	Source string `yaml:"source" json:"source"`
	Name   string `yaml:"name" json:"name"`
}

// AllocationOptions configures a theme allocation step.
type AllocationOptions struct {
	Themes      []string `yaml:"themes" json:"themes"`
	SingleLabel *bool    `yaml:"single_label" json:"single_label"`
	Threshold   *float64 `yaml:"threshold" json:"threshold"`
	Fast        *bool    `yaml:"fast" json:"fast"`
	Inputs      string   `yaml:"inputs" json:"inputs"`
	ThemesFrom  string   `yaml:"themes_from" json:"themes_from"`
	Name        string   `yaml:"name" json:"name"`
}

// ExtractionOptions configures a theme extraction step.
type ExtractionOptions struct {
	Themes     []string `yaml:"themes" json:"themes"`
	Version    string   `yaml:"version" json:"version"`
	Fast       *bool    `yaml:"fast" json:"fast"`
	Inputs     string   `yaml:"inputs" json:"inputs"`
	ThemesFrom string   `yaml:"themes_from" json:"themes_from"`
	Name       string   `yaml:"name" json:"name"`
}

// ClusterOptions configures a clustering step.
type ClusterOptions struct {
	Fast   *bool  `yaml:"fast" json:"fast"`
	Source string `yaml:"source" json:"source"`
	Name   string `yaml:"name" json:"name"`
}

// Source registers data under name for later steps. data is a list of texts,
// a nested list of texts, or a list of pulse.Theme.
func (w *Workflow) Source(name string, data any) *Workflow {
	switch {
	case name == "":
		w.fail(&ConfigError{Msg: "source name is empty"})
	case w.known(name):
		w.fail(&ConfigError{Source: name, Msg: "already registered"})
	default:
		if _, isThemes := data.([]pulse.Theme); !isThemes {
			if _, _, err := flattenTexts(data); err != nil {
				w.fail(&ConfigError{Source: name, Msg: err.Error()})
				return w
			}
		}
		w.sources[name] = data
	}
	return w
}

// ThemeGeneration adds a theme generation step.
func (w *Workflow) ThemeGeneration(opts GenerationOptions) *Workflow {
	w.add(&ThemeGeneration{
		MinThemes: opts.MinThemes,
		MaxThemes: opts.MaxThemes,
		Fast:      opts.Fast,
	}, opts.Name, opts.Source, "")
	return w
}

// Sentiment adds a sentiment step.
func (w *Workflow) Sentiment(opts SentimentOptions) *Workflow {
	w.add(&Sentiment{Fast: opts.Fast}, opts.Name, opts.Source, "")
	return w
}

// ThemeAllocation adds a theme allocation step. Without Themes or
// ThemesFrom the vocabulary comes from the latest theme generation step,
// which is added over the same input when there is none.
func (w *Workflow) ThemeAllocation(opts AllocationOptions) *Workflow {
	p := &ThemeAllocation{
		Themes:    opts.Themes,
		Threshold: opts.Threshold,
		Fast:      opts.Fast,
	}
	if opts.SingleLabel != nil {
		p.MultiLabel = !*opts.SingleLabel
	}
	w.addThemed(p, opts.Name, opts.Inputs, opts.ThemesFrom, true)
	return w
}

// ThemeExtraction adds a theme extraction step. Vocabulary resolution
// matches ThemeAllocation, except that no generation step is added.
func (w *Workflow) ThemeExtraction(opts ExtractionOptions) *Workflow {
	w.addThemed(&ThemeExtraction{
		Themes:  opts.Themes,
		Version: opts.Version,
		Fast:    opts.Fast,
	}, opts.Name, opts.Inputs, opts.ThemesFrom, false)
	return w
}

// Cluster adds a clustering step.
func (w *Workflow) Cluster(opts ClusterOptions) *Workflow {
	w.add(&Cluster{Fast: opts.Fast}, opts.Name, opts.Source, "")
	return w
}

// Add appends a step running p. name and input are optional. A process
// needing a theme vocabulary gets a theme generation step added before it
// when there is none.
func (w *Workflow) Add(p Process, name, input string) *Workflow {
	if _, ok := p.(themed); ok {
		w.addThemed(p, name, input, "", true)
		return w
	}
	w.add(p, name, input, "")
	return w
}

func (w *Workflow) addThemed(p Process, name, input, themesFrom string, inject bool) {
	label := name
	if label == "" {
		label = string(p.Kind())
	}
	static := len(p.(themed).StaticThemes()) > 0

	if !static && themesFrom == "" {
		if input != "" && !w.known(input) {
			w.fail(&ConfigError{Step: label, Source: input, Msg: "unknown source"})
			return
		}
		if inject && w.lastOfKind(KindThemeGeneration) == "" {
			w.ThemeGeneration(GenerationOptions{Source: input})
		}
		themesFrom = w.lastOfKind(KindThemeGeneration)
		if themesFrom == "" {
			w.fail(&ConfigError{Step: label, Msg: "no theme generation step to take themes from"})
			return
		}
	} else if themesFrom != "" && !w.known(themesFrom) {
		w.fail(&ConfigError{Step: label, Source: themesFrom, Msg: "unknown themes source"})
		return
	}
	w.add(p, name, input, themesFrom)
}

// add places p in the workflow under its identifier: name when given,
// otherwise the kind, suffixed _2, _3, ... on repeats.
func (w *Workflow) add(p Process, name, input, themesFrom string) *Step {
	kind := p.Kind()
	w.counts[kind]++

	id := name
	if id == "" {
		id = string(kind)
		if n := w.counts[kind]; n > 1 {
			id = fmt.Sprintf("%s_%d", kind, n)
		}
	}
	if w.known(id) {
		w.fail(&ConfigError{Step: id, Msg: "name already registered"})
		return nil
	}
	if input != "" && !w.known(input) {
		w.fail(&ConfigError{Step: id, Source: input, Msg: "unknown source"})
		return nil
	}

	step := &Step{ID: id, Process: p, Input: input, ThemesFrom: themesFrom}
	w.steps = append(w.steps, step)
	return step
}

func (w *Workflow) fail(err error) {
	w.errs = append(w.errs, err)
}

// known reports whether alias names the dataset, a source or a step.
func (w *Workflow) known(alias string) bool {
	if alias == DatasetSource {
		return true
	}
	return w.hasSource(alias) || w.stepIndex(alias) >= 0
}

func (w *Workflow) hasSource(alias string) bool {
	_, ok := w.sources[alias]
	return ok
}

func (w *Workflow) stepIndex(id string) int {
	return slices.IndexFunc(w.steps, func(s *Step) bool { return s.ID == id })
}

func (w *Workflow) lastOfKind(kind Kind) string {
	for i := len(w.steps) - 1; i >= 0; i-- {
		if w.steps[i].Process.Kind() == kind {
			return w.steps[i].ID
		}
	}
	return ""
}

// Err returns the configuration errors recorded while building.
func (w *Workflow) Err() error {
	return errors.Join(w.errs...)
}

// Steps returns the steps in execution order.
func (w *Workflow) Steps() []Step {
	out := make([]Step, len(w.steps))
	for i, s := range w.steps {
		out[i] = *s
	}
	return out
}

// Graph returns, for each step, the steps it depends on.
func (w *Workflow) Graph() map[string][]string {
	return graph(w.steps)
}

// Run executes the workflow over dataset and returns every step's result.
// The analyzer built for the run is closed before returning.
func (w *Workflow) Run(ctx context.Context, dataset []string, opts ...Option) (*Results, error) {
	a, err := newAnalyzer(dataset, w, opts)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.Run(ctx)
}

// graph derives dependency edges from structural dependencies on earlier
// steps, input wiring and vocabulary wiring.
func graph(steps []*Step) map[string][]string {
	edges := make(map[string][]string, len(steps))
	for i, s := range steps {
		var deps []string
		add := func(id string) {
			if !slices.Contains(deps, id) {
				deps = append(deps, id)
			}
		}
		for _, kind := range s.Process.DependsOn() {
			for _, prev := range steps[:i] {
				if prev.Process.Kind() == kind {
					add(prev.ID)
				}
			}
		}
		for _, alias := range []string{s.Input, s.ThemesFrom} {
			if alias == "" {
				continue
			}
			if slices.ContainsFunc(steps[:i], func(p *Step) bool { return p.ID == alias }) {
				add(alias)
			}
		}
		if deps == nil {
			deps = []string{}
		}
		edges[s.ID] = deps
	}
	return edges
}
