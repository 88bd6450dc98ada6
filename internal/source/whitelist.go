package source

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is one source record of a whitelist file.
type Entry struct {
	URL              string     `yaml:"url" json:"url"`
	Language         string     `yaml:"lang,omitempty" json:"lang,omitempty"`
	Tier             Tier       `yaml:"tier,omitempty" json:"tier,omitempty"`
	CrimeType        string     `yaml:"crime_type,omitempty" json:"crime_type,omitempty"`
	CredibilityScore *float64   `yaml:"credibility_score,omitempty" json:"credibility_score,omitempty"`
	AutoAdded        bool       `yaml:"auto_added,omitempty" json:"auto_added,omitempty"`
	DiscoveryDate    *time.Time `yaml:"discovery_date,omitempty" json:"discovery_date,omitempty"`
}

// Descriptor converts a whitelist entry into a source descriptor.
func (e Entry) Descriptor() Descriptor {
	return Descriptor{
		URL:           e.URL,
		Domain:        Host(e.URL),
		Language:      e.Language,
		DeclaredTier:  e.Tier,
		CrimeTypeHint: e.CrimeType,
	}
}

type feedsDocument struct {
	Feeds []Entry `yaml:"feeds"`
}

// Whitelist is the persisted list of trusted sources. All writes replace the
// whole file under a single lock.
type Whitelist struct {
	path    string
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// LoadWhitelist reads path. A missing file yields an empty whitelist that
// will be created on the first Save.
func LoadWhitelist(path string) (*Whitelist, error) {
	w := &Whitelist{path: path, index: make(map[string]int)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Whitelist file not found, starting empty", "path", path)
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read whitelist: %w", err)
	}

	var doc feedsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse whitelist %s: %w", path, err)
	}

	for _, e := range doc.Feeds {
		e.URL = strings.TrimSpace(e.URL)
		if e.URL == "" {
			continue
		}
		if _, dup := w.index[e.URL]; dup {
			slog.Warn("Duplicate whitelist entry ignored", "url", e.URL)
			continue
		}
		w.index[e.URL] = len(w.entries)
		w.entries = append(w.entries, e)
	}

	slog.Debug("Whitelist loaded", "path", path, "entries", len(w.entries))
	return w, nil
}

func (w *Whitelist) Path() string {
	return w.path
}

// Entries returns a copy of the current entries.
func (w *Whitelist) Entries() []Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

func (w *Whitelist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

// Contains reports whether the exact URL is already listed.
func (w *Whitelist) Contains(url string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.index[strings.TrimSpace(url)]
	return ok
}

// Lookup returns the entry stored for url.
func (w *Whitelist) Lookup(url string) (Entry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	i, ok := w.index[strings.TrimSpace(url)]
	if !ok {
		return Entry{}, false
	}
	return w.entries[i], true
}

// Add appends e unless its URL is already present.
func (w *Whitelist) Add(e Entry) bool {
	e.URL = strings.TrimSpace(e.URL)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.index[e.URL]; ok || e.URL == "" {
		return false
	}
	w.index[e.URL] = len(w.entries)
	w.entries = append(w.entries, e)
	return true
}

// UpgradeTier raises the declared tier of an existing entry. Downgrades are
// ignored.
func (w *Whitelist) UpgradeTier(url string, tier Tier, score float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	i, ok := w.index[strings.TrimSpace(url)]
	if !ok || !tier.Better(w.entries[i].Tier) {
		return false
	}
	w.entries[i].Tier = tier
	w.entries[i].CredibilityScore = &score
	return true
}

// Save writes the whole whitelist atomically.
func (w *Whitelist) Save() error {
	w.mu.RLock()
	doc := feedsDocument{Feeds: make([]Entry, len(w.entries))}
	copy(doc.Feeds, w.entries)
	w.mu.RUnlock()

	return writeYAML(w.path, doc)
}

// WriteTiered writes whitelist_tier_a.yml, _b and _c into dir. Tier D
// sources are not written. The returned paths follow tier order.
func WriteTiered(dir string, byTier map[Tier][]Entry) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, tier := range []Tier{TierA, TierB, TierC} {
		entries := byTier[tier]
		if entries == nil {
			entries = []Entry{}
		}
		path := filepath.Join(dir, fmt.Sprintf("whitelist_tier_%s.yml", strings.ToLower(string(tier))))
		if err := writeYAML(path, feedsDocument{Feeds: entries}); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
