////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package spam

import (
	"strings"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"
	"github.com/pkg/errors"

	"github.com/ephemeraHQ/converse-core/catalog"
)

// Error messages.
const (
	invalidEncodingErr = "content is not valid UTF-8"
)

// HeuristicParams weighs the signals of the default scorer.
type HeuristicParams struct {
	// LinkWeight is added per hyperlink in the content.
	LinkWeight float64

	// EmojiWeight is multiplied by the content's emoji density (emoji
	// count over rune count).
	EmojiWeight float64

	// KeywordWeight is added per solicitation keyword hit.
	KeywordWeight float64

	// Keywords are matched case-insensitively as substrings.
	Keywords []string

	// LinkOnlyBonus is added when the content is nothing but links,
	// the dominant shape of cold-contact spam.
	LinkOnlyBonus float64
}

// GetDefaultHeuristicParams returns the default scorer weights. A
// single link plus a keyword, or two links, clears the spam threshold.
func GetDefaultHeuristicParams() HeuristicParams {
	return HeuristicParams{
		LinkWeight:    0.6,
		EmojiWeight:   2.5,
		KeywordWeight: 0.5,
		Keywords: []string{
			"airdrop", "giveaway", "free mint", "claim", "whitelist",
			"presale", "double your", "seed phrase",
		},
		LinkOnlyBonus: 0.5,
	}
}

// Heuristic is the default Scorer: a weighted sum of link count, emoji
// density, and solicitation keyword hits over the decoded content.
type Heuristic struct {
	params HeuristicParams
}

// NewHeuristic creates the default scorer with the given weights.
func NewHeuristic(params HeuristicParams) *Heuristic {
	return &Heuristic{params: params}
}

// Score computes the weighted sum over the content. Empty content
// scores 0. Non-textual content types are scored on whatever fallback
// text reached the pipeline's decoder.
func (h *Heuristic) Score(content string, ct catalog.ContentType) (
	float64, error) {

	if content == "" {
		return 0, nil
	}
	if !utf8.ValidString(content) {
		return 0, errors.New(invalidEncodingErr)
	}

	links := countLinks(content)
	score := float64(links) * h.params.LinkWeight

	if runes := utf8.RuneCountInString(content); runes > 0 {
		density := float64(len(gomoji.CollectAll(content))) /
			float64(runes)
		score += density * h.params.EmojiWeight
	}

	lower := strings.ToLower(content)
	for _, kw := range h.params.Keywords {
		if strings.Contains(lower, kw) {
			score += h.params.KeywordWeight
		}
	}

	if links > 0 && isLinkOnly(content) {
		score += h.params.LinkOnlyBonus
	}

	return score, nil
}

// countLinks counts the hyperlinks in the content.
func countLinks(content string) int {
	return strings.Count(content, "http://") +
		strings.Count(content, "https://")
}

// isLinkOnly reports whether every whitespace-separated token of the
// content is a hyperlink.
func isLinkOnly(content string) bool {
	for _, field := range strings.Fields(content) {
		if !strings.HasPrefix(field, "http://") &&
			!strings.HasPrefix(field, "https://") {
			return false
		}
	}
	return true
}
