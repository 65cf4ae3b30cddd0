package skinmatch

import "strings"

// ConcernVocabulary is the closed set of skin-concern labels products are tagged with
var ConcernVocabulary = NewVocabulary(
	"Whiteheads",
	"Blackheads",
	"Cystic acne",
	"Hormonal breakouts",
	"Acne scarring",
	"Textured skin",
	"Large pores",
	"Hyperpigmentation",
	"Post-inflammatory hyperpigmentation",
	"Melasma",
	"Uneven skin tone",
	"Wrinkles",
	"Fine lines",
	"Oily skin",
	"Dry skin",
	"Combination skin",
	"Normal skin",
)

// Vocabulary is a case-insensitive set of labels that remembers the casing it was defined with
type Vocabulary struct {
	values []string
	byKey  map[string]string
}

func NewVocabulary(values ...string) Vocabulary {
	v := Vocabulary{
		values: make([]string, 0, len(values)),
		byKey:  make(map[string]string, len(values)),
	}
	for _, value := range values {
		key := TagKey(value)
		if _, ok := v.byKey[key]; ok || key == "" {
			continue
		}
		v.byKey[key] = strings.TrimSpace(value)
		v.values = append(v.values, strings.TrimSpace(value))
	}
	return v
}

// Canonical returns the vocabulary casing of tag
func (v Vocabulary) Canonical(tag string) (string, bool) {
	c, ok := v.byKey[TagKey(tag)]
	return c, ok
}

func (v Vocabulary) Values() []string {
	return append([]string(nil), v.values...)
}

func (v Vocabulary) Len() int {
	return len(v.values)
}

// TagKey is the comparison key for concern tags
func TagKey(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
