// Package detector decides when to promote extraction to a headless renderer.
package detector

import (
	"regexp"
	"strings"

	"github.com/webscout/webscout/internal/scout"
)

// Heuristic implements a handful of rule-based promotions over an already
// extracted document.
type Heuristic struct {
	MinWordCount int
}

// NewHeuristic creates a new detector.
func NewHeuristic(minWords int) *Heuristic {
	if minWords == 0 {
		minWords = 50
	}
	return &Heuristic{MinWordCount: minWords}
}

var blockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`cloudflare|please wait|ddos protection|security check`),
	regexp.MustCompile(`captcha|robot check|verify you'?re human`),
	regexp.MustCompile(`access denied|rate limited|too many requests`),
}

// ShouldPromote reports whether the plain-fetch result is unusable and a
// rendered fetch is worth the cost.
func (h *Heuristic) ShouldPromote(doc scout.Document) bool {
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return true
	}
	if doc.Metadata.Extra["app_shell"] == "true" && doc.Metadata.WordCount < h.MinWordCount {
		return true
	}
	lower := strings.ToLower(content)
	if doc.Metadata.WordCount < h.MinWordCount {
		for _, pattern := range blockPatterns {
			if pattern.MatchString(lower) {
				return true
			}
		}
	}
	return false
}
