// Package voice implements the Voice Registry (C5): a static catalog
// of synthesizer voice IDs keyed by {gender, age_stage}, and a
// per-job registry that assigns each character a voice deterministically
// and idempotently.
package voice

import (
	"gopkg.in/yaml.v3"

	"github.com/yungbote/novelvideo/internal/pipeline/domain"
)

// Entry is one synthesizer voice available for assignment.
type Entry struct {
	ID       string   `yaml:"id"`
	Gender   string   `yaml:"gender"`
	AgeStage string   `yaml:"age_stage"`
	Tags     []string `yaml:"tags,omitempty"`
}

// Catalog groups Entries for lookup by (gender, age_stage).
type Catalog struct {
	Entries []Entry `yaml:"voices"`
}

// ParseCatalog loads a Catalog from YAML, the format of a catalog file
// supplied at boot. The built-in catalog is built in code by
// DefaultCatalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// candidates returns every entry matching gender and ageStage. If none
// match the exact pair, it falls back to matching gender only, then to
// the full catalog, so every character gets a deterministic voice.
func (c *Catalog) candidates(gender domain.GenderKind, ageStage domain.AgeStage) []Entry {
	var exact, genderOnly []Entry
	for _, e := range c.Entries {
		if e.Gender == string(gender) && e.AgeStage == string(ageStage) {
			exact = append(exact, e)
		}
		if e.Gender == string(gender) {
			genderOnly = append(genderOnly, e)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	if len(genderOnly) > 0 {
		return genderOnly
	}
	return c.Entries
}

// DefaultCatalog returns the pipeline's built-in 28-voice catalog: 14
// per gender, distributed child(3)/youth(3)/adult(4)/elder(2)/unknown(2).
func DefaultCatalog() *Catalog {
	c := &Catalog{}
	add := func(gender, stage string, n int) {
		for i := 1; i <= n; i++ {
			c.Entries = append(c.Entries, Entry{
				ID:       gender + "_" + stage + "_" + itoa(i),
				Gender:   gender,
				AgeStage: stage,
			})
		}
	}
	for _, gender := range []string{"male", "female"} {
		add(gender, "child", 3)
		add(gender, "youth", 3)
		add(gender, "adult", 4)
		add(gender, "elder", 2)
		add(gender, "unknown", 2)
	}
	return c
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}
