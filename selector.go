package langclient

import (
	"github.com/bmatcuk/doublestar/v4"
)

// Filter match scores. An exact component match outranks a wildcard so
// more specific registrations win when several apply.
const (
	scoreExact    = 10
	scoreWildcard = 5
)

// MatchFilter scores a single document filter against a document.
// A score of zero means no match; any positive score counts as a match,
// higher scores are more specific. A filter with no components never
// matches.
func MatchFilter(filter DocumentFilter, doc Document) int {
	if filter.Language == "" && filter.Scheme == "" && filter.Pattern == "" {
		return 0
	}

	score := 0

	if filter.Language != "" {
		switch filter.Language {
		case "*":
			score += scoreWildcard
		case doc.LanguageID():
			score += scoreExact
		default:
			return 0
		}
	}

	if filter.Scheme != "" {
		switch filter.Scheme {
		case "*":
			score += scoreWildcard
		case doc.URI().Scheme():
			score += scoreExact
		default:
			return 0
		}
	}

	if filter.Pattern != "" {
		ok, err := doublestar.Match(filter.Pattern, doc.URI().Path())
		if err != nil || !ok {
			// Also try the pattern against the full URI so patterns
			// written with a scheme prefix still apply.
			ok, err = doublestar.Match(filter.Pattern, string(doc.URI()))
			if err != nil || !ok {
				return 0
			}
		}
		score += scoreExact
	}

	return score
}

// Match scores the selector against a document, returning the highest
// filter score. Zero means no filter matched.
func (s DocumentSelector) Match(doc Document) int {
	best := 0
	for _, filter := range s {
		if score := MatchFilter(filter, doc); score > best {
			best = score
		}
	}
	return best
}
