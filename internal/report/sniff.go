package report

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	sniffMarkerLines  = 15
	sniffCommaLines   = 3
	binarySampleRunes = 1000
	binaryRatio       = 0.10
)

var (
	reportTitleRe    = regexp.MustCompile(`(?i)\bsales\s+(?:report|pipeline|update)\b`)
	dollarShortRe    = regexp.MustCompile(`\$\s*\d[\d,.]*\s*[MmKk]\b`)
	headerRowSniffRe = regexp.MustCompile(`(?i)^"?deal(?:\s+name)?"?\s*,`)
)

// IsCSVContent guesses whether text is a CSV pipeline export. It looks for
// several comma-heavy lines or for report markers near the top. The guess
// only selects a parser; callers keep a fallback path.
func IsCSVContent(text string) bool {
	lines := strings.Split(strings.TrimPrefix(text, "\ufeff"), "\n")

	commaLines := 0
	for _, l := range lines {
		if strings.Count(l, ",") > 2 {
			commaLines++
			if commaLines >= sniffCommaLines {
				return true
			}
		}
	}

	for i := 0; i < len(lines) && i < sniffMarkerLines; i++ {
		l := strings.TrimSpace(lines[i])
		if l == "" {
			continue
		}
		if reportTitleRe.MatchString(l) || ownerHeaderRe.MatchString(l) ||
			headerRowSniffRe.MatchString(l) || dollarShortRe.MatchString(l) {
			return true
		}
	}
	return false
}

// IsBinaryContent reports whether more than 10% of the first 1000 characters
// are non-printable, which is what a PDF without a text layer looks like once
// decoded as a string.
func IsBinaryContent(text string) bool {
	total, bad := 0, 0
	for len(text) > 0 && total < binarySampleRunes {
		r, size := utf8.DecodeRuneInString(text)
		text = text[size:]
		total++
		if r == utf8.RuneError && size <= 1 {
			bad++
			continue
		}
		switch r {
		case '\n', '\r', '\t':
			continue
		}
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			bad++
		}
	}
	if total == 0 {
		return false
	}
	return float64(bad)/float64(total) > binaryRatio
}
