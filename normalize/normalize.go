// Package normalize maps product records from any supported upstream shape
// into the canonical skinmatch.Product.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"skinmatch"
)

// ErrUnusableRecord is returned for records that cannot be mapped to a usable product
var ErrUnusableRecord = errors.New("unusable product record")

// Record is a raw product record as returned by a product source
type Record map[string]any

var (
	idKeys          = []string{"id", "product_id", "productId"}
	nameKeys        = []string{"name", "title"}
	descriptionKeys = []string{"description", "body"}
	tagKeys         = []string{"labels", "tags", "concerns"}
	imageKeys       = []string{"image_links", "images", "image_url", "image"}
	urlKeys         = []string{"product_link", "url", "product_url"}
)

type Normalizer struct {
	// Vocabulary canonicalizes tag casing and is used to derive tags for
	// records that carry none.
	Vocabulary skinmatch.Vocabulary
}

func New(vocabulary skinmatch.Vocabulary) Normalizer {
	return Normalizer{Vocabulary: vocabulary}
}

// Normalize maps r to the canonical product shape. Records without a usable
// id, name or price are rejected with ErrUnusableRecord.
func (n Normalizer) Normalize(r Record) (skinmatch.Product, error) {
	var p skinmatch.Product

	p.ID = ID(r)
	if p.ID == "" {
		return skinmatch.Product{}, fmt.Errorf("%w: missing id", ErrUnusableRecord)
	}

	p.Name = firstString(r, nameKeys...)
	if p.Name == "" {
		return skinmatch.Product{}, fmt.Errorf("%w: product %s has no name", ErrUnusableRecord, p.ID)
	}

	price, err := Price(r)
	if err != nil {
		return skinmatch.Product{}, fmt.Errorf("%w: product %s: %v", ErrUnusableRecord, p.ID, err)
	}
	p.Price = price

	p.Description = firstString(r, descriptionKeys...)
	p.URL = firstString(r, urlKeys...)
	p.Images = firstList(r, imageKeys...)

	if raw, ok := first(r, tagKeys...); ok {
		p.Tags = n.canonicalTags(toList(raw))
	} else {
		p.Tags = n.deriveTags(p.Name + " " + p.Description)
	}

	return p, nil
}

// ID returns the record's id from the first id field present, or "" when
// there is none.
func ID(r Record) string {
	return firstString(r, idKeys...)
}

// NormalizeAll normalizes every record, keeping source order and dropping
// unusable records. The returned errors describe each dropped record.
func (n Normalizer) NormalizeAll(records []Record) ([]skinmatch.Product, []error) {
	products := make([]skinmatch.Product, 0, len(records))
	var dropped []error
	for _, r := range records {
		p, err := n.Normalize(r)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		products = append(products, p)
	}
	return products, dropped
}

func (n Normalizer) canonicalTags(tags []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := skinmatch.TagKey(tag)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if c, ok := n.Vocabulary.Canonical(tag); ok {
			tag = c
		}
		out = append(out, tag)
	}
	return out
}

// deriveTags keyword-matches the vocabulary against free text
func (n Normalizer) deriveTags(text string) []string {
	text = keywordForm(text)
	var out []string
	for _, label := range n.Vocabulary.Values() {
		if strings.Contains(text, keywordForm(label)) {
			out = append(out, label)
		}
	}
	return out
}

func keywordForm(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "-", " "))
}

// Price extracts the price in cents. The first present field wins:
// price_cents (integer cents), price (dollars), price_range.min, price_range.max.
func Price(r Record) (skinmatch.Cents, error) {
	if v, ok := r["price_cents"]; ok && v != nil {
		f, err := number(v)
		if err != nil {
			return 0, fmt.Errorf("price_cents: %w", err)
		}
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("price_cents: %v is not a whole number", v)
		}
		return checkPrice(skinmatch.Cents(f))
	}

	if v, ok := r["price"]; ok && v != nil {
		f, err := number(v)
		if err != nil {
			return 0, fmt.Errorf("price: %w", err)
		}
		return checkPrice(skinmatch.CentsFromDollars(f))
	}

	if v, ok := r["price_range"]; ok && v != nil {
		rng, ok := asMap(v)
		if !ok {
			return 0, fmt.Errorf("price_range: unsupported shape %T", v)
		}
		for _, key := range []string{"min", "max"} {
			if bound, ok := rng[key]; ok && bound != nil {
				f, err := number(bound)
				if err != nil {
					return 0, fmt.Errorf("price_range.%s: %w", key, err)
				}
				return checkPrice(skinmatch.CentsFromDollars(f))
			}
		}
		return 0, errors.New("price_range has neither min nor max")
	}

	return 0, errors.New("no price")
}

func checkPrice(c skinmatch.Cents) (skinmatch.Cents, error) {
	if c < 0 {
		return 0, fmt.Errorf("negative price %s", c)
	}
	return c, nil
}

func number(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(n), "$"))
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("unsupported shape %T", v)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	}
	return nil, false
}

func first(r Record, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := r[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func firstString(r Record, keys ...string) string {
	for _, key := range keys {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case int, int32, int64, uint64:
			s = fmt.Sprint(t)
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func firstList(r Record, keys ...string) []string {
	for _, key := range keys {
		if v, ok := r[key]; ok && v != nil {
			if list := toList(v); len(list) > 0 {
				return list
			}
		}
	}
	return nil
}

// toList accepts a list of strings or a comma separated string
func toList(v any) []string {
	var parts []string
	switch t := v.(type) {
	case string:
		parts = strings.Split(t, ",")
	case []string:
		parts = t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
