// Package classify assigns each item to one of the four crime pillars by
// keyword overlap.
package classify

import (
	"math"

	"github.com/kithua/acw/internal/rules"
	"github.com/kithua/acw/internal/source"
	"github.com/kithua/acw/internal/textnorm"
)

// Fallback is returned on ties and when no keyword matches.
const Fallback = source.PillarCyber

// saturation is the overlap count at which confidence reaches 1.
const saturation = 3.0

type Result struct {
	Pillar     source.Pillar         `json:"pillar"`
	Confidence float64               `json:"confidence"`
	Overlap    map[source.Pillar]int `json:"overlap"`
}

// Classifier is stateless after construction and safe for concurrent use.
type Classifier struct {
	keywords map[source.Pillar]map[string]struct{}
}

func New(r *rules.Rules) *Classifier {
	c := &Classifier{keywords: make(map[source.Pillar]map[string]struct{}, len(source.Pillars))}
	for _, p := range source.Pillars {
		set := make(map[string]struct{}, len(r.Pillars[p]))
		for _, kw := range r.Pillars[p] {
			set[textnorm.Fold(kw)] = struct{}{}
		}
		c.keywords[p] = set
	}
	return c
}

// Classify scores text against every pillar. The unique pillar with the
// highest overlap wins; ties and zero overlap fall back to cyber.
func (c *Classifier) Classify(text string) Result {
	tokens := textnorm.TokenSet(text)

	overlap := make(map[source.Pillar]int, len(source.Pillars))
	best, bestCount, tied := Fallback, 0, false
	for _, p := range source.Pillars {
		n := 0
		for tok := range tokens {
			if _, ok := c.keywords[p][tok]; ok {
				n++
			}
		}
		overlap[p] = n

		switch {
		case n > bestCount:
			best, bestCount, tied = p, n, false
		case n == bestCount && n > 0:
			tied = true
		}
	}

	if bestCount == 0 || tied {
		best = Fallback
	}

	return Result{
		Pillar:     best,
		Confidence: math.Min(float64(bestCount)/saturation, 1),
		Overlap:    overlap,
	}
}

// Pillar is Classify reduced to its pillar.
func (c *Classifier) Pillar(text string) source.Pillar {
	return c.Classify(text).Pillar
}

// ClassifyItem classifies an item's title and summary together.
func (c *Classifier) ClassifyItem(it source.Item) Result {
	return c.Classify(it.Title + " " + it.Summary)
}
