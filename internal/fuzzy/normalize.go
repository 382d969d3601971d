// SPDX-License-Identifier: MIT

// Package fuzzy implements stream-name normalization and fuzzy scoring for
// matching upstream video streams to sporting events. The same pipeline is
// applied to both stream names and generated search patterns so the two sides
// meet in a common shape.
package fuzzy

import (
	"regexp"
	"strings"

	unorm "golang.org/x/text/unicode/norm"
)

// timeMask temporarily replaces the colon inside clock times so the metadata
// prefix cut cannot mis-split on them.
const timeMask = '\x1f'

// mojibake repairs the usual UTF-8-decoded-as-latin1 damage seen in provider
// playlists. Applied longest-first so multi-byte sequences win.
var mojibake = []struct{ bad, good string }{
	{"â€™", "'"},
	{"â€“", "-"},
	{"â€”", "-"},
	{"Ã¤", "ä"},
	{"Ã¶", "ö"},
	{"Ã¼", "ü"},
	{"Ã©", "é"},
	{"Ã¨", "è"},
	{"Ã¡", "á"},
	{"Ã³", "ó"},
	{"Ã­", "í"},
	{"Ãº", "ú"},
	{"Ã±", "ñ"},
	{"Ã§", "ç"},
	{"Ã¸", "ø"},
	{"Ã¥", "å"},
	{"ÃŸ", "ß"},
}

var (
	// Provider/country/language tags ahead of the real name:
	// "US| ...", "[UK] ...", "ES - ...", "EN: ..." and friends.
	prefixRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\[?(usa?|uk|ca|au|nz|de|es|fr|it|pt|br|mx|nl|se|no|dk|pl|tr|ar)\]?\s*[-|:]\s*`),
		regexp.MustCompile(`(?i)^\[?(en|eng|esp|spa|fre|ger|por|ita)\]?\s*[-|:]\s*`),
		regexp.MustCompile(`(?i)^\[?(vip|hd|fhd|uhd|4k|sd)\]?\s*[-|:]\s*`),
	}

	clock12Re = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*([ap]\.?m\.?)\b`)
	clock24Re = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)

	numericDateRe = regexp.MustCompile(`\b\d{1,2}[/.-]\d{1,2}([/.-]\d{2,4})?\b`)
	monthDateRe   = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(st|nd|rd|th)?\b`)
	rankRe        = regexp.MustCompile(`#\d+`)
	channelNumRe  = regexp.MustCompile(`(?i)\bch(annel)?\.?\s*\d+\b`)

	// Trailing time/date payloads after "@" or "|" markers. Ordinary
	// "away @ home" matchups are untouched because the tail must start
	// with a masked clock or a date.
	trailerRe = regexp.MustCompile(`[@|]\s*(\d{1,2}\x1f\d{2}|\d{1,2}[/.-]\d{1,2}).*$`)

	maskedClockRe = regexp.MustCompile(`(?i)\b\d{1,2}\x1f\d{2}\s*([ap]\.?m\.?)?\b`)
	parenRe       = regexp.MustCompile(`\(([^)]*)\)`)
	separatorRe   = regexp.MustCompile(`[-_/|,;+&~*]`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// usStates are kept when they appear parenthesized; they disambiguate
// same-named cities ("Kansas City (MO)").
var usStates = map[string]bool{
	"al": true, "ak": true, "az": true, "ar": true, "ca": true, "co": true,
	"ct": true, "de": true, "fl": true, "ga": true, "hi": true, "id": true,
	"il": true, "in": true, "ia": true, "ks": true, "ky": true, "la": true,
	"me": true, "md": true, "ma": true, "mi": true, "mn": true, "ms": true,
	"mo": true, "mt": true, "ne": true, "nv": true, "nh": true, "nj": true,
	"nm": true, "ny": true, "nc": true, "nd": true, "oh": true, "ok": true,
	"or": true, "pa": true, "ri": true, "sc": true, "sd": true, "tn": true,
	"tx": true, "ut": true, "vt": true, "va": true, "wa": true, "wv": true,
	"wi": true, "wy": true, "dc": true,
}

// Normalize runs the full pipeline. It is idempotent:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = unorm.NFC.String(s)

	// 1. mojibake repair
	for _, m := range mojibake {
		s = strings.ReplaceAll(s, m.bad, m.good)
	}

	// 2. provider/language prefixes
	for changed := true; changed; {
		changed = false
		for _, re := range prefixRes {
			if out := re.ReplaceAllString(s, ""); out != s {
				s = out
				changed = true
			}
		}
	}

	// 3. mask clock times so the colon cut below cannot split on them
	s = clock12Re.ReplaceAllString(s, "$1"+string(timeMask)+"$2$3")
	s = clock24Re.ReplaceAllString(s, "$1"+string(timeMask)+"$2")

	// 4. metadata prefix: everything up to the first unmasked colon
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}

	// 5. lowercase
	s = strings.ToLower(s)

	// 6. dates
	s = numericDateRe.ReplaceAllString(s, " ")
	s = monthDateRe.ReplaceAllString(s, " ")

	// 7. explicit rankings
	s = rankRe.ReplaceAllString(s, " ")

	// 8. channel numbers and trailing time/date suffixes
	s = channelNumRe.ReplaceAllString(s, " ")
	s = trailerRe.ReplaceAllString(s, " ")
	s = maskedClockRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, string(timeMask), " ")

	// 9. parentheticals, except two-letter US state codes
	s = parenRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := strings.TrimSpace(m[1 : len(m)-1])
		if usStates[inner] {
			return " " + inner + " "
		}
		return " "
	})

	// 10. separator punctuation to spaces
	s = separatorRe.ReplaceAllString(s, " ")

	// 11. city/team variants, longest key first
	s = applyVariants(s)

	// 12. collapse whitespace
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// matchupSeparators in priority order; the first one occurring in the
// normalized name wins and splits it into (away, home).
var matchupSeparators = []string{" vs. ", " vs ", " at ", " @ ", " v. ", " v ", " x "}

// SplitMatchup decomposes a normalized stream name into away and home sides.
// Names without a recognized separator are not decomposable.
func SplitMatchup(s string) (away, home string, ok bool) {
	best := -1
	bestSep := ""
	for _, sep := range matchupSeparators {
		if i := strings.Index(s, sep); i >= 0 && (best < 0 || i < best) {
			best = i
			bestSep = sep
		}
	}
	if best < 0 {
		return "", "", false
	}
	away = strings.TrimSpace(s[:best])
	home = strings.TrimSpace(s[best+len(bestSep):])
	return away, home, away != "" && home != ""
}
