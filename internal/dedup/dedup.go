// Package dedup collapses items that describe the same event into clusters
// with one canonical representative.
package dedup

import (
	"github.com/kithua/acw/internal/rules"
	"github.com/kithua/acw/internal/source"
)

// Cluster groups duplicate items. Members keep input order and include the
// canonical item.
type Cluster struct {
	Canonical source.Item
	Members   []source.Item
}

// Engine is safe for concurrent use.
type Engine struct {
	threshold float64
	stopWords map[string]struct{}
	tracking  map[string]struct{}
}

func New(r *rules.Rules) *Engine {
	e := &Engine{
		threshold: r.Dedup.TitleSimilarity,
		stopWords: make(map[string]struct{}, len(r.Dedup.StopWords)),
		tracking:  make(map[string]struct{}, len(r.Dedup.TrackingParams)),
	}
	for _, w := range r.Dedup.StopWords {
		e.stopWords[w] = struct{}{}
	}
	for _, p := range r.Dedup.TrackingParams {
		e.tracking[p] = struct{}{}
	}
	return e
}

// Dedup returns one canonical item per cluster, ordered by each cluster's
// first occurrence in items.
func (e *Engine) Dedup(items []source.Item) []source.Item {
	clusters := e.Clusters(items)
	out := make([]source.Item, len(clusters))
	for i, c := range clusters {
		out[i] = c.Canonical
	}
	return out
}

// Similar reports whether two items would land in the same cluster on
// their own.
func (e *Engine) Similar(a, b source.Item) bool {
	if la := NormalizeLink(a.Link, e.tracking); la != "" && la == NormalizeLink(b.Link, e.tracking) {
		return true
	}
	return jaccard(titleWords(a.Title, e.stopWords), titleWords(b.Title, e.stopWords)) >= e.threshold
}

// Clusters groups items transitively: equal normalized links or title
// similarity at or above the threshold join two items.
func (e *Engine) Clusters(items []source.Item) []Cluster {
	n := len(items)
	if n == 0 {
		return nil
	}

	uf := newUnionFind(n)
	words := make([][]string, n)
	byLink := make(map[string]int, n)
	byWord := make(map[string][]int)

	for i, it := range items {
		if link := NormalizeLink(it.Link, e.tracking); link != "" {
			if j, ok := byLink[link]; ok {
				uf.union(j, i)
			} else {
				byLink[link] = i
			}
		}

		words[i] = titleWords(it.Title, e.stopWords)
		checked := make(map[int]struct{})
		for _, w := range words[i] {
			for _, j := range byWord[w] {
				if _, done := checked[j]; done {
					continue
				}
				checked[j] = struct{}{}
				if jaccard(words[i], words[j]) >= e.threshold {
					uf.union(j, i)
				}
			}
			byWord[w] = append(byWord[w], i)
		}
	}

	order := make([]int, 0)
	members := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		if _, seen := members[root]; !seen {
			order = append(order, root)
		}
		members[root] = append(members[root], i)
	}

	clusters := make([]Cluster, 0, len(order))
	for _, root := range order {
		idx := members[root]
		c := Cluster{Members: make([]source.Item, len(idx))}
		best := idx[0]
		for k, i := range idx {
			c.Members[k] = items[i]
			if better(items[i], items[best]) {
				best = i
			}
		}
		c.Canonical = items[best]
		clusters = append(clusters, c)
	}
	return clusters
}

// better orders canonical candidates: higher tier, then earlier publication
// (undated last), then the lexicographically smaller link.
func better(a, b source.Item) bool {
	if a.Tier.Rank() != b.Tier.Rank() {
		return a.Tier.Rank() > b.Tier.Rank()
	}

	switch {
	case a.PublishedAt != nil && b.PublishedAt == nil:
		return true
	case a.PublishedAt == nil && b.PublishedAt != nil:
		return false
	case a.PublishedAt != nil && b.PublishedAt != nil && !a.PublishedAt.Equal(*b.PublishedAt):
		return a.PublishedAt.Before(*b.PublishedAt)
	}

	return a.Link < b.Link
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union keeps the smaller index as root so roots follow input order.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
