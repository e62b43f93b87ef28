// package normalize prepares track metadata for cross-catalog search.
//
// Source catalogs decorate track names with release annotations ("(Album
// Version)", "- Remastered 2011") that destination search endpoints treat as
// literal terms, so queries get progressively stripped across search passes.
// Artist names are reduced to a bare comparable form for containment checks.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// TotalPasses is the highest query pass. Passes run 0 through TotalPasses.
const TotalPasses = 8

var (
	parenPattern = regexp.MustCompile(`\(.+?\)`)
	dashPattern  = regexp.MustCompile(` - .+`)
)

// ignoredTerms mark annotations that never help a search and are dropped
// from the first pass on.
var ignoredTerms = []string{"original", "single", "album", "feat.", "ft.", "bonus", "spotify"}

// relevantTerms mark annotations whose core word should survive cleanup:
// "(Radio Mix)" becomes "mix", not nothing, because mixes and remixes are
// distinct catalog entries.
var relevantTerms = []string{"(mix ", " mix)", " mix ", "mix ", " mix", "(remix ", " remix)", " remix ", "remix ", " remix"}

// CleanQuery strips release annotations from a track or album name.
//
// Annotations are parenthesized spans and everything after " - ". What
// happens to them escalates with the pass: pass 0 drops only spans carrying
// an ignored term, pass 1 additionally collapses mix/remix spans to their
// core word, and pass 2 and above drop every span, repeating until the
// result is stable. Commas are removed last since the destination search
// API treats them as parameter separators.
func CleanQuery(query string, pass int) string {
	if pass >= 2 {
		// Deleting a span can expose a new "name - annotation" form, so a
		// single sweep is not enough: dropping everything must reach a
		// fixpoint for repeated cleanup to be a no-op.
		cleaned := query
		for {
			next := dashPattern.ReplaceAllString(parenPattern.ReplaceAllString(cleaned, ""), "")
			if next == cleaned {
				break
			}
			cleaned = next
		}
		return strings.ReplaceAll(cleaned, ",", "")
	}

	matches := parenPattern.FindAllStringIndex(query, -1)
	matches = append(matches, dashPattern.FindAllStringIndex(query, -1)...)

	cleaned := []byte(query)
	deleted := 0
	for _, match := range matches {
		start, end := match[0], match[1]
		text := strings.ToLower(query[start:end])

		if containsAny(text, ignoredTerms) {
			if start >= deleted && start-deleted+end-start <= len(cleaned) {
				cleaned = append(cleaned[:start-deleted], cleaned[start-deleted+end-start:]...)
				deleted += end - start
			}
			continue
		}

		if pass == 1 {
			if term, ok := matchRelevantTerm(text); ok && start >= deleted && start-deleted+end-start <= len(cleaned) {
				rest := append([]byte(term), cleaned[start-deleted+end-start:]...)
				cleaned = append(cleaned[:start-deleted], rest...)
				deleted += end - start - len(term)
			}
		}
	}

	return strings.ReplaceAll(string(cleaned), ",", "")
}

// Query builds the destination search query for a pass.
//
// Passes 0-2 combine the progressively cleaned track name with the artist,
// pass 3 lowercases that, pass 4 tries artist and album, pass 5 name and
// album, and passes 6-8 fall back to artist, album and name alone.
func Query(name, artist, album string, pass int) string {
	cleanName := CleanQuery(name, pass)
	cleanAlbum := CleanQuery(album, pass)

	var query string
	switch {
	case pass < 4:
		query = cleanName + " " + artist
		if pass == 3 {
			query = strings.ToLower(query)
		}
	case pass == 4:
		query = artist + " " + cleanAlbum
	case pass == 5:
		query = cleanName + " " + cleanAlbum
	case pass == 6:
		query = artist
	case pass == 7:
		query = album
	default:
		query = cleanName
	}

	return strings.ReplaceAll(query, ",", "")
}

// MatchName reduces a track name to the comparable form used when scoring
// candidates: annotations stripped, lowercased, truncated at the first dash,
// transliterated to ASCII.
func MatchName(name string) string {
	cleaned := strings.ToLower(CleanQuery(name, 0))
	cleaned, _, _ = strings.Cut(cleaned, "-")
	return unidecode.Unidecode(strings.TrimSpace(cleaned))
}

// ArtistName reduces an artist name for containment comparison: "&" becomes
// "and", everything that is not a letter or digit is dropped, and the result
// is transliterated and lowercased. "TR/ST" and "Trüst" both become "trst".
func ArtistName(artist string) string {
	artist = strings.ReplaceAll(artist, "&", "and")

	var b strings.Builder
	for _, r := range artist {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}

	return strings.ToLower(unidecode.Unidecode(b.String()))
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// matchRelevantTerm returns the collapsed core word ("mix" or "remix") for
// the first relevant term contained in text.
func matchRelevantTerm(text string) (string, bool) {
	for _, term := range relevantTerms {
		if strings.Contains(text, term) {
			replacer := strings.NewReplacer("(", "", ")", "", " ", "")
			return replacer.Replace(term), true
		}
	}
	return "", false
}
