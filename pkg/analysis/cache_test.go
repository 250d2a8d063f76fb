package analysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/researchwiseai/pulse-go/pkg/pulse"
)

func TestCacheKey(t *testing.T) {
	base, err := cacheKey(KindSentiment, []string{"a", "b"}, map[string]any{"fast": true, "x": 1})
	if err != nil {
		t.Fatal(err)
	}

	same, _ := cacheKey(KindSentiment, []string{"a", "b"}, map[string]any{"x": 1, "fast": true})
	if same != base {
		t.Error("key depends on parameter insertion order")
	}

	variants := map[string]func() (string, error){
		"kind":         func() (string, error) { return cacheKey(KindCluster, []string{"a", "b"}, map[string]any{"fast": true, "x": 1}) },
		"text order":   func() (string, error) { return cacheKey(KindSentiment, []string{"b", "a"}, map[string]any{"fast": true, "x": 1}) },
		"param value":  func() (string, error) { return cacheKey(KindSentiment, []string{"a", "b"}, map[string]any{"fast": false, "x": 1}) },
		"extra param":  func() (string, error) { return cacheKey(KindSentiment, []string{"a", "b"}, map[string]any{"fast": true, "x": 1, "y": 2}) },
		"joined texts": func() (string, error) { return cacheKey(KindSentiment, []string{"ab"}, map[string]any{"fast": true, "x": 1}) },
	}
	for name, fn := range variants {
		got, err := fn()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got == base {
			t.Errorf("changing %s does not change the key", name)
		}
	}
}

func TestCacheEntryRoundTrip(t *testing.T) {
	in := &ThemeGenerationResult{
		Texts:  []string{"a", "b"},
		Themes: []pulse.Theme{{ShortLabel: "x", Representatives: []string{"a", "b"}}},
	}
	b, err := encodeEntry(KindThemeGeneration, in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := decodeEntry(b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(any(in), out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	if _, err := decodeEntry([]byte(`{"kind":"word_count","data":{}}`)); err == nil {
		t.Error("unknown kind should not decode")
	}
	if _, err := decodeEntry([]byte(`not json`)); err == nil {
		t.Error("garbage should not decode")
	}
}
