package security

import (
	"errors"
	"strings"
	"unicode"
)

// MaxSearchLength caps free-text search input.
const MaxSearchLength = 100

var ErrSearchTooLong = errors.New("search term is too long")

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// NormalizeSearch trims the term, drops control characters and collapses
// inner whitespace. An empty result means no search.
func NormalizeSearch(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, raw)
	term := strings.Join(strings.Fields(cleaned), " ")
	if len([]rune(term)) > MaxSearchLength {
		return "", ErrSearchTooLong
	}
	return term, nil
}

// LikePattern turns a normalized term into a lower-cased substring pattern
// for LIKE ... ESCAPE '\'. Wildcards typed by the user match literally.
func LikePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}
