package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kithua/acw/internal/dedup"
	"github.com/kithua/acw/internal/source"
)

// Rejection reasons. Blacklist rejections carry the matched rule after the
// prefix.
const (
	ReasonMissingDomain    = "missing_domain"
	ReasonBlacklistedP     = "blacklisted:"
	ReasonSuspiciousDomain = "suspicious_domain"
	ReasonBelowMinTier     = "below_min_tier"
	ReasonInterrupted      = "interrupted"
)

type Rejection struct {
	Item   source.Item `json:"item"`
	Reason string      `json:"reason"`
}

// ClusterSummary describes a duplicate cluster of more than one item.
type ClusterSummary struct {
	Canonical string   `json:"canonical"`
	Title     string   `json:"title"`
	Members   []string `json:"members"`
}

type Stats struct {
	Input      int                   `json:"input"`
	Rejected   int                   `json:"rejected"`
	Scored     int                   `json:"scored"`
	Duplicates int                   `json:"duplicates"`
	Curated    int                   `json:"curated"`
	Pillars    map[source.Pillar]int `json:"pillars"`
	Tiers      map[source.Tier]int   `json:"tiers"`
}

// Corpus is the curated output of one run: canonical items bucketed by
// pillar, plus everything that was dropped and why.
type Corpus struct {
	GeneratedAt time.Time                       `json:"generated_at"`
	Pillars     map[source.Pillar][]source.Item `json:"pillars"`
	Rejected    []Rejection                     `json:"rejected"`
	Clusters    []ClusterSummary                `json:"duplicate_clusters"`
	Stats       Stats                           `json:"stats"`
}

func newCorpus(now time.Time, input int) *Corpus {
	c := &Corpus{
		GeneratedAt: now.UTC(),
		Pillars:     make(map[source.Pillar][]source.Item, len(source.Pillars)),
		Rejected:    []Rejection{},
		Clusters:    []ClusterSummary{},
		Stats: Stats{
			Input:   input,
			Pillars: make(map[source.Pillar]int, len(source.Pillars)),
			Tiers:   make(map[source.Tier]int, len(source.Tiers)),
		},
	}
	for _, p := range source.Pillars {
		c.Pillars[p] = []source.Item{}
		c.Stats.Pillars[p] = 0
	}
	return c
}

func (c *Corpus) reject(it source.Item, reason string) {
	c.Rejected = append(c.Rejected, Rejection{Item: it, Reason: reason})
	c.Stats.Rejected++
}

func (c *Corpus) add(it source.Item) {
	c.Pillars[it.Pillar] = append(c.Pillars[it.Pillar], it)
	c.Stats.Pillars[it.Pillar]++
	c.Stats.Tiers[it.Tier]++
	c.Stats.Curated++
}

func (c *Corpus) addClusters(clusters []dedup.Cluster) {
	for _, cl := range clusters {
		if len(cl.Members) < 2 {
			continue
		}
		s := ClusterSummary{
			Canonical: cl.Canonical.Link,
			Title:     cl.Canonical.Title,
			Members:   make([]string, len(cl.Members)),
		}
		for i, m := range cl.Members {
			s.Members[i] = m.Link
		}
		c.Clusters = append(c.Clusters, s)
		c.Stats.Duplicates += len(cl.Members) - 1
	}
}

// Items returns the curated items in pillar order.
func (c *Corpus) Items() []source.Item {
	var out []source.Item
	for _, p := range source.Pillars {
		out = append(out, c.Pillars[p]...)
	}
	return out
}

// Write stores the corpus as indented JSON.
func (c *Corpus) Write(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode corpus: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write corpus: %w", err)
	}
	return nil
}

// ReadItems loads a JSON array of items.
func ReadItems(path string) ([]source.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	var items []source.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse items %s: %w", path, err)
	}
	return items, nil
}
