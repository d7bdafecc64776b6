// Package match links deal names from sales reports to clients in the registry.
package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	corporateSuffixRe = regexp.MustCompile(`\s+(?:inc|llc|ltd|corp|company|co)\.?$`)
	nonWordRe         = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	parenNameRe       = regexp.MustCompile(`^(.+?)\s*\((.+)\)\s*$`)
	dashNameRe        = regexp.MustCompile(`^(.+?)\s+[-–—]\s+(.+)$`)
)

// Normalize canonicalizes a company or deal name for comparison:
//  1. Folding diacritics and converting to lowercase
//  2. Removing one trailing corporate suffix (Inc, LLC, Ltd, Corp, Company, Co)
//  3. Replacing punctuation with spaces
//  4. Collapsing whitespace
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(foldDiacritics(name)))
	if name == "" {
		return ""
	}

	name = corporateSuffixRe.ReplaceAllString(name, "")
	name = nonWordRe.ReplaceAllString(name, " ")

	return strings.Join(strings.Fields(name), " ")
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NameParts is a deal or client name split into the agency/parent part and
// the end client it works for.
type NameParts struct {
	BaseName  string `json:"baseName"`
	EndClient string `json:"endClient,omitempty"`
}

// SplitParentAndEndClient splits "Agency (Client)" and "Agency - Client"
// names into normalized halves. Names without either pattern use their first
// word as the base name, since deals are often written "ParentCo SubBrand".
func SplitParentAndEndClient(name string) NameParts {
	trimmed := strings.TrimSpace(name)

	if m := parenNameRe.FindStringSubmatch(trimmed); m != nil {
		return NameParts{BaseName: Normalize(m[1]), EndClient: Normalize(m[2])}
	}
	if m := dashNameRe.FindStringSubmatch(trimmed); m != nil {
		return NameParts{BaseName: Normalize(m[1]), EndClient: Normalize(m[2])}
	}

	words := strings.Fields(Normalize(trimmed))
	if len(words) == 0 {
		return NameParts{}
	}
	return NameParts{BaseName: words[0]}
}
