// Package blacklist rejects sources by registrable domain, IP range or
// regular-expression pattern.
package blacklist

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/netip"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kithua/acw/internal/source"
)

// ErrMissing is returned by Load when the file is absent and required.
var ErrMissing = errors.New("blacklist file not found")

// File is the on-disk blacklist document.
type File struct {
	Domains  []string `yaml:"domains"`
	IPs      []string `yaml:"ips"`
	Patterns []string `yaml:"patterns"`
}

// Blacklist is read-only after construction and safe for concurrent use.
type Blacklist struct {
	domains  map[string]struct{}
	prefixes []netip.Prefix
	patterns []*regexp.Regexp
	loaded   bool
}

// New compiles f. An invalid IP or pattern is an error.
func New(f File) (*Blacklist, error) {
	b := &Blacklist{domains: make(map[string]struct{}, len(f.Domains))}

	for _, d := range f.Domains {
		if host := source.NormalizeHost(d); host != "" {
			b.domains[strings.TrimPrefix(host, "www.")] = struct{}{}
		}
	}

	for _, raw := range f.IPs {
		prefix, err := parsePrefix(raw)
		if err != nil {
			return nil, err
		}
		b.prefixes = append(b.prefixes, prefix)
	}

	for _, expr := range f.Patterns {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("invalid blacklist pattern %q: %w", expr, err)
		}
		b.patterns = append(b.patterns, re)
	}

	return b, nil
}

func parsePrefix(raw string) (netip.Prefix, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid blacklist IP range %q: %w", raw, err)
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid blacklist IP %q: %w", raw, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Load reads a blacklist file. When the file is missing and required is
// false an empty blacklist is returned so filtering still runs.
func Load(path string, required bool) (*Blacklist, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if required {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		slog.Warn("Blacklist file not found, enforcing empty blacklist", "path", path)
		return New(File{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blacklist: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse blacklist %s: %w", path, err)
	}

	b, err := New(f)
	if err != nil {
		return nil, err
	}
	b.loaded = true

	slog.Info("Blacklist loaded", "path", path, "domains", len(b.domains), "ip_ranges", len(b.prefixes), "patterns", len(b.patterns))
	return b, nil
}

// Loaded reports whether the blacklist came from a file.
func (b *Blacklist) Loaded() bool {
	return b.loaded
}

// IsBlacklisted reports whether domain is rejected.
func (b *Blacklist) IsBlacklisted(domain string) bool {
	_, ok := b.Match(domain)
	return ok
}

// IsURLBlacklisted checks the host of rawURL.
func (b *Blacklist) IsURLBlacklisted(rawURL string) bool {
	_, ok := b.MatchURL(rawURL)
	return ok
}

// MatchURL is Match applied to the host of rawURL.
func (b *Blacklist) MatchURL(rawURL string) (string, bool) {
	host := source.Host(rawURL)
	if host == "" {
		return "", false
	}
	return b.Match(host)
}

// matchDomain walks from the normalized host up to its registrable root, so
// a listed root covers every subdomain and a listed subdomain covers only
// its own subtree.
func (b *Blacklist) matchDomain(domain string) (string, bool) {
	host := source.NormalizeHost(domain)
	root := source.RootDomain(host)
	for host != "" {
		if _, ok := b.domains[host]; ok {
			return host, true
		}
		if host == root {
			break
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return "", false
}

// Match returns the rule that rejects domain. Domain rules compare the
// lowercased host and its parents up to the registrable root; patterns see
// the domain as given and match case-insensitively.
func (b *Blacklist) Match(domain string) (string, bool) {
	if b == nil || strings.TrimSpace(domain) == "" {
		return "", false
	}

	if addr, ok := source.IsIP(domain); ok {
		for _, p := range b.prefixes {
			if p.Contains(addr) {
				return "ip:" + p.String(), true
			}
		}
	} else if listed, ok := b.matchDomain(domain); ok {
		return "domain:" + listed, true
	}

	for _, re := range b.patterns {
		if re.MatchString(domain) {
			return "pattern:" + strings.TrimPrefix(re.String(), "(?i)"), true
		}
	}
	return "", false
}
