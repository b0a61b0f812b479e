package keywords

import (
	"sort"
	"strings"
)

// Trigram is a sequence of three consecutive non-stopword words and the number of
// times it occurs. Words follow the case rule of the index.
type Trigram struct {
	Words [3]string
	Count int
}

func (t Trigram) String() string {
	return strings.Join(t.Words[:], " ")
}

// RepeatedTrigrams finds the trigrams that occur at least minRepeat times across texts,
// most frequent first. At most maxReturn trigrams are returned.
func RepeatedTrigrams(texts []string, minRepeat, maxReturn int) []Trigram {
	var words []string
	for _, text := range texts {
		for _, w := range Words(text) {
			if IsStopword(w) {
				continue
			}
			words = append(words, Normalize(w))
		}
	}

	counts := map[[3]string]int{}
	for i := 0; i+2 < len(words); i++ {
		counts[[3]string{words[i], words[i+1], words[i+2]}]++
	}

	var out []Trigram
	for key, n := range counts {
		if n < minRepeat {
			continue
		}
		out = append(out, Trigram{Words: key, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].String() < out[j].String()
	})
	if len(out) > maxReturn {
		out = out[:maxReturn]
	}
	return out
}
