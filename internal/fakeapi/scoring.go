package fakeapi

import (
	"math"
	"strings"
	"unicode"
)

var (
	positiveWords = map[string]bool{
		"great": true, "good": true, "love": true, "loved": true, "excellent": true,
		"happy": true, "friendly": true, "fast": true, "helpful": true, "nice": true,
	}
	negativeWords = map[string]bool{
		"bad": true, "slow": true, "terrible": true, "hate": true, "hated": true,
		"poor": true, "broken": true, "rude": true, "awful": true, "long": true,
	}
)

// tokens lowercases s and splits it into words.
func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// jaccard is the word-set Jaccard similarity of a and b. Identical texts
// score 1.
func jaccard(a, b string) float64 {
	if a == b {
		return 1
	}
	ta, tb := tokens(a), tokens(b)
	set := make(map[string]uint8, len(ta)+len(tb))
	for _, t := range ta {
		set[t] |= 1
	}
	for _, t := range tb {
		set[t] |= 2
	}
	if len(set) == 0 {
		return 0
	}
	inter := 0
	for _, v := range set {
		if v == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}

func crossMatrix(a, b []string) [][]float64 {
	m := make([][]float64, len(a))
	for i, x := range a {
		m[i] = make([]float64, len(b))
		for j, y := range b {
			m[i][j] = jaccard(x, y)
		}
	}
	return m
}

func classify(text string) (string, float64) {
	pos, neg := 0, 0
	for _, t := range tokens(text) {
		if positiveWords[t] {
			pos++
		}
		if negativeWords[t] {
			neg++
		}
	}
	switch {
	case pos > 0 && neg > 0:
		return "mixed", 0.6
	case pos > 0:
		return "positive", 0.9
	case neg > 0:
		return "negative", 0.9
	}
	return "neutral", 0.5
}

type theme struct {
	ShortLabel      string   `json:"shortLabel"`
	Label           string   `json:"label"`
	Description     string   `json:"description"`
	Representatives []string `json:"representatives"`
}

// generateThemes derives k themes from the leading inputs. k is minThemes
// (default 2) capped by maxThemes and the number of inputs.
func generateThemes(inputs []string, minThemes, maxThemes int) []theme {
	k := minThemes
	if k <= 0 {
		k = 2
	}
	if maxThemes > 0 && k > maxThemes {
		k = maxThemes
	}
	k = min(k, len(inputs))

	themes := make([]theme, k)
	for i := range themes {
		words := tokens(inputs[i])
		short := "theme"
		if len(words) > 0 {
			short = words[len(words)-1]
		}
		themes[i] = theme{
			ShortLabel:      short,
			Label:           inputs[i],
			Description:     "Comments like: " + inputs[i],
			Representatives: []string{inputs[i], inputs[(i+k)%len(inputs)]},
		}
	}
	return themes
}

// extract returns, for each theme, the words of text that also occur in the
// theme.
func extract(text string, themes []string) [][]string {
	out := make([][]string, len(themes))
	words := tokens(text)
	for j, th := range themes {
		vocab := make(map[string]bool)
		for _, t := range tokens(th) {
			vocab[t] = true
		}
		out[j] = []string{}
		for _, w := range words {
			if vocab[w] {
				out[j] = append(out[j], w)
			}
		}
	}
	return out
}

// embed returns a normalised letter-frequency vector.
func embed(text string) []float64 {
	v := make([]float64, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range v {
			v[i] /= norm
		}
	}
	return v
}
