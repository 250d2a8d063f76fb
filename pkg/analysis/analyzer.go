package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"reflect"
	"time"

	"github.com/researchwiseai/pulse-go/internal/store"
	"github.com/researchwiseai/pulse-go/pkg/pulse"
)

// redisDialTimeout bounds the connection check of WithRedisCache.
const redisDialTimeout = 5 * time.Second

// Analyzer runs steps in order over a dataset.
type Analyzer struct {
	dataset []string
	steps   []*Step
	sources map[string]any
	gateway Gateway
	cache   Cache
	fast    bool
	logger  *slog.Logger

	ownGateway bool
	ownCache   bool
}

type settings struct {
	gateway   Gateway
	fast      bool
	cache     Cache
	openCache func(*slog.Logger) (Cache, error)
	logger    *slog.Logger
}

// Option configures an Analyzer.
type Option func(*settings)

// WithGateway sets the gateway used for API calls. The caller keeps
// ownership: Close does not close it. Without this option an HTTP client
// with pulse.DefaultConfig is created.
func WithGateway(g Gateway) Option {
	return func(s *settings) { s.gateway = g }
}

// WithFast sets the default fast flag for steps without their own. The
// default is true.
func WithFast(fast bool) Option {
	return func(s *settings) { s.fast = fast }
}

// WithCache stores step results in c. The caller keeps ownership.
func WithCache(c Cache) Option {
	return func(s *settings) {
		s.cache = c
		s.openCache = nil
	}
}

// WithCacheDir stores step results in a SQLite database inside dir.
func WithCacheDir(dir string) Option {
	return func(s *settings) {
		s.cache = nil
		s.openCache = func(logger *slog.Logger) (Cache, error) {
			return store.OpenCacheDir(context.Background(), dir, logger)
		}
	}
}

// WithMemoryCache stores step results in an in-process LRU of size entries.
func WithMemoryCache(size int) Option {
	return func(s *settings) {
		s.cache = nil
		s.openCache = func(*slog.Logger) (Cache, error) {
			return store.NewMemoryCache(size)
		}
	}
}

// WithRedisCache stores step results in the Redis server at url.
func WithRedisCache(url string, ttl time.Duration) Option {
	return func(s *settings) {
		s.cache = nil
		s.openCache = func(logger *slog.Logger) (Cache, error) {
			ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
			defer cancel()
			return store.OpenRedisCache(ctx, url, "", ttl, logger)
		}
	}
}

// WithCacheDisabled turns off result caching.
func WithCacheDisabled() Option {
	return func(s *settings) {
		s.cache = nil
		s.openCache = nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// NewAnalyzer creates an analyzer running processes over dataset. A process
// needing a theme vocabulary without static themes gets a default theme
// generation step inserted before it when none precedes it.
func NewAnalyzer(dataset []string, processes []Process, opts ...Option) (*Analyzer, error) {
	w := NewWorkflow()
	for _, p := range processes {
		w.Add(p, "", "")
	}
	return newAnalyzer(dataset, w, opts)
}

func newAnalyzer(dataset []string, w *Workflow, opts []Option) (*Analyzer, error) {
	if err := w.Err(); err != nil {
		return nil, err
	}

	s := settings{fast: true}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	a := &Analyzer{
		dataset: append([]string(nil), dataset...),
		steps:   w.steps,
		sources: maps.Clone(w.sources),
		gateway: s.gateway,
		cache:   s.cache,
		fast:    s.fast,
		logger:  s.logger.With("component", "analyzer"),
	}
	if s.openCache != nil {
		c, err := s.openCache(s.logger)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		a.cache, a.ownCache = c, true
	}
	if a.gateway == nil {
		a.gateway = pulse.NewClient(pulse.DefaultConfig(), s.logger)
		a.ownGateway = true
	}
	return a, nil
}

// Steps returns the steps in execution order, including inserted ones.
func (a *Analyzer) Steps() []Step {
	out := make([]Step, len(a.steps))
	for i, s := range a.steps {
		out[i] = *s
	}
	return out
}

// Graph returns, for each step, the steps it depends on.
func (a *Analyzer) Graph() map[string][]string {
	return graph(a.steps)
}

// Run executes every step in order. Any failure aborts the run and no
// results are returned.
func (a *Analyzer) Run(ctx context.Context) (*Results, error) {
	results := newResults()
	sources := maps.Clone(a.sources)
	if sources == nil {
		sources = make(map[string]any)
	}
	sources[DatasetSource] = a.dataset

	a.logger.Info("run started", "steps", len(a.steps), "texts", len(a.dataset), "fast", a.fast, "cache", a.cache != nil)
	start := time.Now()
	for _, step := range a.steps {
		if err := a.runStep(ctx, step, results, sources); err != nil {
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) {
				return nil, err
			}
			return nil, fmt.Errorf("step %q: %w", step.ID, err)
		}
	}
	a.logger.Info("run completed", "steps", len(a.steps), "duration", time.Since(start))
	return results, nil
}

func (a *Analyzer) runStep(ctx context.Context, step *Step, results *Results, sources map[string]any) error {
	start := time.Now()
	kind := step.Process.Kind()

	alias := step.Input
	if alias == "" {
		alias = DatasetSource
	}
	input, ok := sources[alias]
	if !ok {
		return &ConfigError{Step: step.ID, Source: alias, Msg: "unknown source"}
	}
	texts, nested, err := flattenTexts(input)
	if err != nil {
		return &ConfigError{Step: step.ID, Source: alias, Msg: err.Error()}
	}
	if nested && kind != KindSentiment {
		return &ConfigError{Step: step.ID, Source: alias, Msg: "nested sources are only supported by sentiment"}
	}

	fast := a.fast
	if fo, ok := step.Process.(fastOverrider); ok && fo.FastOverride() != nil {
		fast = *fo.FastOverride()
	}
	rc := &RunContext{
		Step:       step.ID,
		Dataset:    texts,
		Fast:       fast,
		Gateway:    a.gateway,
		ThemesFrom: step.ThemesFrom,
		Logger:     a.logger.With("step", step.ID),
		results:    results,
		sources:    sources,
	}

	wrapped, cached, err := a.execute(ctx, step.Process, rc)
	if err != nil {
		return err
	}
	if sr, ok := wrapped.(*SentimentResult); ok && nested {
		sr.Nested = reshape(input, sr.Labels())
	}

	results.add(step.ID, wrapped)
	switch v := wrapped.(type) {
	case *ThemeGenerationResult:
		sources[step.ID] = v.Themes
	case *ThemeExtractionResult:
		sources[step.ID] = v.Extractions
	case *SentimentResult:
		if v.Nested != nil {
			sources[step.ID] = v.Nested
		} else {
			sources[step.ID] = v.Labels()
		}
	}

	a.logger.Info("step completed",
		"step", step.ID,
		"kind", kind,
		"fast", fast,
		"cached", cached,
		"duration", time.Since(start),
	)
	return nil
}

// execute returns the wrapped result of p, from the cache when possible.
func (a *Analyzer) execute(ctx context.Context, p Process, rc *RunContext) (any, bool, error) {
	var key string
	if a.cache != nil && cacheable(p.Kind()) {
		params := maps.Clone(p.Params())
		if params == nil {
			params = make(map[string]any)
		}
		params["fast"] = rc.Fast
		if t, ok := p.(themed); ok {
			vocab, err := resolveVocabulary(rc, t.StaticThemes())
			if err != nil {
				return nil, false, err
			}
			params["vocabulary"] = vocab
		}

		var err error
		key, err = cacheKey(p.Kind(), rc.Dataset, params)
		if err != nil {
			return nil, false, err
		}
		if b, ok, err := a.cache.Get(ctx, key); err != nil {
			a.logger.Warn("cache lookup failed", "step", rc.Step, "error", err)
		} else if ok {
			v, err := decodeEntry(b)
			if err == nil {
				return v, true, nil
			}
			a.logger.Warn("discarding unreadable cache entry", "step", rc.Step, "error", err)
		}
	}

	raw, err := p.Execute(ctx, rc)
	if err != nil {
		return nil, false, err
	}
	wrapped, err := wrap(p, raw, rc.Dataset)
	if err != nil {
		return nil, false, err
	}

	if key != "" {
		b, err := encodeEntry(p.Kind(), wrapped)
		if err == nil {
			err = a.cache.Set(ctx, key, b)
		}
		if err != nil {
			a.logger.Warn("cache store failed", "step", rc.Step, "error", err)
		}
	}
	return wrapped, false, nil
}

// ClearCache removes every cached result.
func (a *Analyzer) ClearCache(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Clear(ctx)
}

// Close releases the gateway and cache the analyzer created itself. Errors
// are logged, not returned.
func (a *Analyzer) Close() error {
	if a.ownGateway {
		if err := a.gateway.Close(); err != nil {
			a.logger.Warn("close gateway", "error", err)
		}
	}
	if a.ownCache && a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("close cache", "error", err)
		}
	}
	return nil
}

// flattenTexts returns the texts of a list or nested list in depth-first
// order, and whether any nesting was present.
func flattenTexts(v any) ([]string, bool, error) {
	items, ok := asList(v)
	if !ok {
		return nil, false, fmt.Errorf("%T is not a list of texts", v)
	}
	out := []string{}
	nested := false
	var walk func([]any) error
	walk = func(items []any) error {
		for _, it := range items {
			if s, ok := it.(string); ok {
				out = append(out, s)
				continue
			}
			sub, ok := asList(it)
			if !ok {
				return fmt.Errorf("%T is not a text", it)
			}
			nested = true
			if err := walk(sub); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(items); err != nil {
		return nil, false, err
	}
	return out, nested, nil
}

// textList returns v as a flat list of texts.
func textList(v any) ([]string, error) {
	texts, nested, err := flattenTexts(v)
	if err != nil {
		return nil, err
	}
	if nested {
		return nil, errors.New("nested list")
	}
	return texts, nil
}

// reshape rebuilds the shape of v with labels in place of its texts.
func reshape(v any, labels []string) []any {
	next := 0
	var build func([]any) []any
	build = func(items []any) []any {
		out := make([]any, len(items))
		for i, it := range items {
			if _, ok := it.(string); ok {
				if next < len(labels) {
					out[i] = labels[next]
				}
				next++
				continue
			}
			sub, _ := asList(it)
			out[i] = build(sub)
		}
		return out
	}
	items, _ := asList(v)
	return build(items)
}

func asList(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
