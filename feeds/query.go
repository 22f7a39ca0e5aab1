package feeds

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// toQueryToken quotes terms containing whitespace
func toQueryToken(word string) string {
	if strings.IndexFunc(word, unicode.IsSpace) >= 0 {
		return fmt.Sprintf(`"%s"`, word)
	}
	return word
}

// withMuteWords appends a negated clause for every mute word
func withMuteWords(query string, muteWords []string) string {
	if len(muteWords) == 0 {
		return query
	}

	exclusions := lo.Map(muteWords, func(word string, _ int) string {
		return "-" + toQueryToken(word)
	})
	return strings.TrimSpace(query + " " + strings.Join(exclusions, " "))
}

// BuildQueries splits a comma separated base query into its alternatives and
// returns one effective search query per alternative.
func BuildQueries(base string, muteWords []string) []string {
	alternatives := lo.FilterMap(strings.Split(base, ","), func(alt string, _ int) (string, bool) {
		alt = strings.TrimSpace(alt)
		return alt, alt != ""
	})

	return lo.Map(alternatives, func(alt string, _ int) string {
		return withMuteWords(alt, muteWords)
	})
}
