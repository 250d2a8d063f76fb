package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/researchwiseai/pulse-go/internal/store"
)

// Cache stores wrapped step results between runs. The backends in
// internal/store implement it.
type Cache = store.Cache

// cacheVersion is mixed into every key; bump it when the key material or
// the stored encoding changes.
const cacheVersion = "pulse-cache-v1"

type keyMaterial struct {
	Version string         `json:"v"`
	Kind    Kind           `json:"kind"`
	Texts   []string       `json:"texts"`
	Params  map[string]any `json:"params"`
}

// cacheKey derives the key of a step result from its ordered input texts,
// its kind and its parameters. Maps marshal with sorted keys, so parameter
// order does not matter.
func cacheKey(kind Kind, texts []string, params map[string]any) (string, error) {
	b, err := json.Marshal(keyMaterial{
		Version: cacheVersion,
		Kind:    kind,
		Texts:   texts,
		Params:  params,
	})
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// cacheable reports whether results of kind can be stored.
func cacheable(kind Kind) bool {
	switch kind {
	case KindThemeGeneration, KindSentiment, KindThemeAllocation, KindThemeExtraction, KindCluster:
		return true
	}
	return false
}

type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func encodeEntry(kind Kind, wrapped any) ([]byte, error) {
	data, err := json.Marshal(wrapped)
	if err != nil {
		return nil, fmt.Errorf("encode cached %s result: %w", kind, err)
	}
	return json.Marshal(envelope{Kind: kind, Data: data})
}

func decodeEntry(b []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	var v any
	switch env.Kind {
	case KindThemeGeneration:
		v = &ThemeGenerationResult{}
	case KindSentiment:
		v = &SentimentResult{}
	case KindThemeAllocation:
		v = &ThemeAllocationResult{}
	case KindCluster:
		v = &ClusterResult{}
	case KindThemeExtraction:
		v = &ThemeExtractionResult{}
	default:
		return nil, fmt.Errorf("decode cache entry: unknown kind %q", env.Kind)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return nil, fmt.Errorf("decode cached %s result: %w", env.Kind, err)
	}
	return v, nil
}
