package blocklist

import (
	"bufio"
	"fmt"
	"net"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Format identifies the syntax of a rule list.
type Format int

const (
	// FormatDomains is a plain hostname list, one domain per line.
	FormatDomains Format = iota

	// FormatRegex is a list of regular expressions matched against the
	// full hostname.
	FormatRegex
)

// regexHeaderMarkers are header lines that switch a list into regex mode.
// Lists published in regex syntax announce it on their first non-empty
// line; both the hash and the Adblock-style bang comment form appear in
// the wild.
var regexHeaderMarkers = []string{
	"#:regex",
	"! regex",
	"!#regex",
}

// DefaultDenylist returns a curated set of ad and tracking domains that
// callers merge with the remote list. The remote list is the authority;
// this set only guarantees the most common trackers stay blocked when an
// operator points the filter at a sparse or stale mirror.
func DefaultDenylist() []string {
	return []string{
		"doubleclick.net",
		"googlesyndication.com",
		"googletagmanager.com",
		"google-analytics.com",
		"adservice.google.com",
		"scorecardresearch.com",
		"adnxs.com",
		"criteo.com",
		"outbrain.com",
		"taboola.com",
	}
}

// Snapshot is an immutable, fully-built rule set. A snapshot is built once
// and then shared read-only by all filter calls; it is never mutated after
// construction, so no locking is needed to consult it.
type Snapshot struct {
	domains map[string]struct{}
	regexes []*regexp.Regexp
}

// Len returns the number of loaded rules (domains plus patterns).
func (s *Snapshot) Len() int {
	return len(s.domains) + len(s.regexes)
}

// DetectFormat inspects the first non-empty line for a regex header marker.
func DetectFormat(text string) Format {
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, marker := range regexHeaderMarkers {
			if strings.HasPrefix(lower, marker) {
				return FormatRegex
			}
		}
		return FormatDomains
	}
	return FormatDomains
}

// Parse builds a Snapshot from list text, auto-detecting the format.
// The extra domains are merged into the domain set after normalization
// regardless of the detected format.
func Parse(text string, extra []string) (*Snapshot, error) {
	snap := &Snapshot{domains: make(map[string]struct{})}

	switch DetectFormat(text) {
	case FormatRegex:
		if err := snap.parseRegexes(text); err != nil {
			return nil, err
		}
	case FormatDomains:
		snap.parseDomains(text)
	}

	for _, d := range extra {
		if host, ok := normalizeDomain(d); ok {
			snap.domains[host] = struct{}{}
		}
	}

	return snap, nil
}

// parseDomains reads one hostname per line, discarding comments
// ('#', '!'), path rules ('/'), and IPv4 literals.
func (s *Snapshot) parseDomains(text string) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if host, ok := normalizeDomain(line); ok {
			s.domains[host] = struct{}{}
		}
	}
}

// parseRegexes compiles each non-comment line as a pattern. A single
// malformed pattern fails the whole load; a half-compiled list would
// silently admit traffic the list author meant to block.
func (s *Snapshot) parseRegexes(text string) error {
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		re, err := regexp.Compile(line)
		if err != nil {
			return fmt.Errorf("compile blocklist pattern %q: %w", line, err)
		}
		s.regexes = append(s.regexes, re)
	}
	return nil
}

// normalizeDomain lowercases a rule line and strips leading wildcard and
// dot prefixes. It reports false for lines that are not domain rules:
// empty lines, comments, path rules, and IPv4 literals.
func normalizeDomain(line string) (string, bool) {
	if line == "" {
		return "", false
	}
	switch line[0] {
	case '#', '!', '/':
		return "", false
	}

	host := strings.ToLower(line)
	host = strings.TrimPrefix(host, "*.")
	host = strings.TrimPrefix(host, ".")
	if host == "" || !strings.Contains(host, ".") {
		return "", false
	}
	if net.ParseIP(host) != nil {
		return "", false
	}
	return host, true
}

// Blocked reports whether hostname h matches the snapshot.
//
// The check runs in four stages: regex patterns against the full hostname,
// exact membership, the effective root domain (public-suffix aware), and
// finally the chain of parent suffixes between h and its root. The suffix
// walk is required because lists often name an intermediate ad or tracking
// subdomain (ads.example.com) while the observed hostname is a deeper leaf
// (sub.ads.example.com).
func (s *Snapshot) Blocked(h string) bool {
	h = strings.ToLower(strings.TrimSuffix(h, "."))
	if h == "" {
		return true
	}

	for _, re := range s.regexes {
		if re.MatchString(h) {
			return true
		}
	}

	if _, ok := s.domains[h]; ok {
		return true
	}

	root, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		// Unresolvable hostnames (bare TLDs, IPs, local names) cannot be
		// vetted against domain rules. Fail closed.
		return true
	}
	if root != h {
		if _, ok := s.domains[root]; ok {
			return true
		}
	}

	// Walk parent suffixes from the second label upward, stopping at the
	// root (already checked) or when no dot remains.
	labels := strings.Split(h, ".")
	for i := 1; i < len(labels); i++ {
		suffix := strings.Join(labels[i:], ".")
		if suffix == root || !strings.Contains(suffix, ".") {
			break
		}
		if _, ok := s.domains[suffix]; ok {
			return true
		}
	}

	return false
}
