package scout

import (
	"net/url"
	"strings"
)

// DroppedCandidate records why a candidate was removed during filtering.
// Malformed URLs are dropped with a reason, never silently discarded.
type DroppedCandidate struct {
	Candidate Candidate `json:"candidate"`
	Reason    string    `json:"reason"`
}

// Drop reasons recorded by FilterCandidates.
const (
	DropMalformedURL   = "malformed url"
	DropNotWhitelisted = "not on whitelist"
	DropBlacklisted    = "blacklisted"
)

// domainMatcher matches hosts against normalized domain patterns, exact or
// by subdomain suffix (example.com matches sub.example.com).
type domainMatcher struct {
	patterns []string
}

func newDomainMatcher(domains []string) *domainMatcher {
	m := &domainMatcher{}
	for _, raw := range domains {
		value := normalizeDomain(raw)
		if value == "" {
			continue
		}
		m.addPattern(value)
	}
	if len(m.patterns) == 0 {
		return nil
	}
	return m
}

func (m *domainMatcher) addPattern(pattern string) {
	for _, existing := range m.patterns {
		if existing == pattern {
			return
		}
	}
	m.patterns = append(m.patterns, pattern)
}

// Matches reports whether host equals a pattern or is a subdomain of one.
func (m *domainMatcher) Matches(host string) bool {
	if m == nil {
		return false
	}
	host = normalizeDomain(host)
	if host == "" {
		return false
	}
	for _, pattern := range m.patterns {
		if host == pattern || strings.HasSuffix(host, "."+pattern) {
			return true
		}
	}
	return false
}

func normalizeDomain(domain string) string {
	domain = strings.TrimSpace(strings.ToLower(domain))
	return strings.TrimPrefix(domain, "www.")
}

// FilterCandidates applies whitelist/blacklist rules per candidate domain.
// A non-empty whitelist is an exclusive allow-list: the blacklist is ignored
// entirely. Matching is case-insensitive and considers only the registered
// domain; scheme and path play no part.
func FilterCandidates(candidates []Candidate, whitelist, blacklist []string) ([]Candidate, []DroppedCandidate) {
	allow := newDomainMatcher(whitelist)
	deny := newDomainMatcher(blacklist)

	kept := make([]Candidate, 0, len(candidates))
	var dropped []DroppedCandidate
	for _, c := range candidates {
		host, ok := candidateHost(c.URL)
		if !ok {
			dropped = append(dropped, DroppedCandidate{Candidate: c, Reason: DropMalformedURL})
			continue
		}
		if allow != nil {
			if allow.Matches(host) {
				kept = append(kept, c)
			} else {
				dropped = append(dropped, DroppedCandidate{Candidate: c, Reason: DropNotWhitelisted})
			}
			continue
		}
		if deny.Matches(host) {
			dropped = append(dropped, DroppedCandidate{Candidate: c, Reason: DropBlacklisted})
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}

func candidateHost(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := u.Hostname()
	if host == "" {
		return "", false
	}
	return host, true
}
