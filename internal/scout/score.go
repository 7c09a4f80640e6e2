package scout

import (
	"net/url"
	"strings"
)

// URL substrings that indicate job boards or aggregators rather than the
// organization itself.
var penaltyPatterns = []string{
	"linkedin.com",
	"indeed.com",
	"ziprecruiter.com",
	"jobs",
	"careers",
}

// ScoreDocument rates how relevant a fetched document is to the query, in
// [0,1]. The score is deterministic for a given query/document pair. An empty
// document (fetch failed or no extractable content) scores exactly 0.
//
// Queries follow the "organization - location" convention: words from the
// organization part are matched against the candidate's domain, the location
// part against the URL and title.
func ScoreDocument(query string, doc Document) float64 {
	if doc.Content == "" {
		return 0
	}
	lowURL := strings.ToLower(doc.URL)

	orgName, location := splitQuery(query)

	score := 0.0

	domain := domainOf(lowURL)
	matched := false
	for _, word := range strings.Fields(orgName) {
		if len(word) > 4 && strings.Contains(domain, word) {
			matched = true
			break
		}
	}
	if matched {
		score += 0.6
		if strings.HasSuffix(domain, ".org") {
			score += 0.2
		}
	}

	if location != "" {
		haystack := lowURL + " " + strings.ToLower(doc.Metadata.Title)
		for _, loc := range strings.Split(location, ",") {
			loc = strings.TrimSpace(loc)
			if loc != "" && strings.Contains(haystack, loc) {
				score += 0.4
				break
			}
		}
	}

	for _, pattern := range penaltyPatterns {
		if strings.Contains(lowURL, pattern) {
			score -= 0.3
		}
	}

	return clampScore(score)
}

func splitQuery(query string) (org, location string) {
	parts := strings.SplitN(strings.ToLower(query), "-", 2)
	org = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		location = strings.TrimSpace(parts[1])
	}
	return org, location
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return normalizeDomain(u.Hostname())
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
