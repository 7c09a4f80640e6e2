package scout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func doc(url, title, content string) Document {
	return Document{
		URL:      url,
		Content:  content,
		Metadata: DocumentMetadata{Title: title},
	}
}

func TestScoreDocument_DomainAndLocation(t *testing.T) {
	t.Parallel()

	d := doc("https://www.riverside.org/about", "Riverside Community Center - Portland", "body text")
	score := ScoreDocument("riverside center - portland", d)

	// domain word match 0.6 + .org bonus 0.2 + location match 0.4, clamped to 1
	require.InDelta(t, 1.0, score, 1e-9)
}

func TestScoreDocument_PenaltyPatterns(t *testing.T) {
	t.Parallel()

	d := doc("https://www.linkedin.com/company/riverside", "Riverside", "profile")
	score := ScoreDocument("riverside center", d)

	// domain word does not appear in linkedin.com, and the job-board penalty
	// cannot push the score below zero.
	require.Equal(t, 0.0, score)
}

func TestScoreDocument_EmptyContentScoresZero(t *testing.T) {
	t.Parallel()

	d := Document{URL: "https://riverside.org"}
	require.Equal(t, 0.0, ScoreDocument("riverside center", d))
}

func TestScoreDocument_Deterministic(t *testing.T) {
	t.Parallel()

	d := doc("https://riverside.org", "Riverside", "hello")
	first := ScoreDocument("riverside center - portland", d)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, ScoreDocument("riverside center - portland", d))
	}
}

func TestScoreDocument_ShortWordsIgnored(t *testing.T) {
	t.Parallel()

	// Words of four letters or fewer never count as a domain match.
	d := doc("https://acme.com", "Acme", "text")
	require.Equal(t, 0.0, ScoreDocument("acme", d))
}
