// SPDX-License-Identifier: MIT

package fuzzy

import (
	"sort"
	"strings"
)

// cityVariants folds nicknames, regional spellings and known synonyms into a
// canonical form. This dictionary is the matcher's primary precision lever:
// an entry here turns a cheap string fold into a first-pass both-teams match
// that would otherwise need a low fuzzy threshold.
//
// Keys and values are already normalized (lowercase, separator-free).
// Values must be fixed points of the pipeline so Normalize stays idempotent.
var cityVariants = map[string]string{
	// English football
	"man u":        "manchester united",
	"man utd":      "manchester united",
	"man united":   "manchester united",
	"man city":     "manchester city",
	"spurs":        "tottenham hotspur",
	"tottenham":    "tottenham hotspur",
	"wolves":       "wolverhampton wanderers",
	"newcastle":    "newcastle united",
	"west ham":     "west ham united",
	"leeds":        "leeds united",
	"forest":       "nottingham forest",
	"nottm forest": "nottingham forest",
	"brighton":     "brighton and hove albion",

	// Continental clubs
	"koln":            "cologne",
	"köln":            "cologne",
	"fc köln":         "cologne",
	"bayern":          "bayern munich",
	"münchen":         "munich",
	"muenchen":        "munich",
	"gladbach":        "borussia monchengladbach",
	"mönchengladbach": "borussia monchengladbach",
	"dortmund":        "borussia dortmund",
	"bvb":             "borussia dortmund",
	"psg":             "paris saint germain",
	"paris sg":        "paris saint germain",
	"inter":           "inter milan",
	"internazionale":  "inter milan",
	"juve":            "juventus",
	"atleti":          "atletico madrid",
	"atlético madrid": "atletico madrid",
	"barca":           "barcelona",
	"barça":           "barcelona",
	"sevilla fc":      "sevilla",

	// North American
	"ny giants":    "new york giants",
	"ny jets":      "new york jets",
	"ny knicks":    "new york knicks",
	"ny rangers":   "new york rangers",
	"ny yankees":   "new york yankees",
	"ny mets":      "new york mets",
	"la lakers":    "los angeles lakers",
	"la clippers":  "los angeles clippers",
	"la kings":     "los angeles kings",
	"la dodgers":   "los angeles dodgers",
	"la rams":      "los angeles rams",
	"la chargers":  "los angeles chargers",
	"la galaxy":    "los angeles galaxy",
	"sf giants":    "san francisco giants",
	"sf 49ers":     "san francisco 49ers",
	"niners":       "san francisco 49ers",
	"tb bucs":      "tampa bay buccaneers",
	"bucs":         "tampa bay buccaneers",
	"tb lightning": "tampa bay lightning",
	"bolts":        "tampa bay lightning",
	"kc chiefs":    "kansas city chiefs",
	"kc royals":    "kansas city royals",
	"gb packers":   "green bay packers",
	"ne patriots":  "new england patriots",
	"pats":         "new england patriots",
	"philly":       "philadelphia",
	"nola":         "new orleans",
	"vegas":        "las vegas",
	"dc united":    "d c united",
	"habs":         "montreal canadiens",
	"montréal":     "montreal",
	"leafs":        "toronto maple leafs",
	"sens":         "ottawa senators",
	"caps":         "washington capitals",
	"cavs":         "cleveland cavaliers",
	"mavs":         "dallas mavericks",
	"wolves mn":    "minnesota timberwolves",
	"sixers":       "philadelphia 76ers",
	"blazers":      "portland trail blazers",
}

type variantEntry struct {
	key   []string // key tokens
	value []string // canonical tokens
}

// variantEntries holds the dictionary sorted by key token count descending so
// multi-word nicknames win over their prefixes ("man utd" before "man u").
var variantEntries = func() []variantEntry {
	entries := make([]variantEntry, 0, len(cityVariants))
	for k, v := range cityVariants {
		entries = append(entries, variantEntry{
			key:   strings.Fields(k),
			value: strings.Fields(v),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].key) != len(entries[j].key) {
			return len(entries[i].key) > len(entries[j].key)
		}
		return strings.Join(entries[i].key, " ") < strings.Join(entries[j].key, " ")
	})
	return entries
}()

// applyVariants replaces whole-word occurrences of each dictionary key with
// its canonical form. A span that already reads as the canonical form is left
// alone, which keeps Normalize idempotent for entries like
// "tottenham" -> "tottenham hotspur".
func applyVariants(s string) string {
	tokens := strings.Fields(s)
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		entry, span := matchVariant(tokens, i)
		if entry == nil {
			out = append(out, tokens[i])
			i++
			continue
		}
		out = append(out, entry.value...)
		i += span
	}
	return strings.Join(out, " ")
}

// matchVariant finds the longest dictionary entry starting at tokens[i] and
// returns it with the number of input tokens the replacement consumes. When
// the text at i already spells the entry's canonical value, that whole span
// is consumed as-is.
func matchVariant(tokens []string, i int) (*variantEntry, int) {
	for idx := range variantEntries {
		e := &variantEntries[idx]
		if tokensMatch(tokens, i, e.value) {
			return e, len(e.value)
		}
		if tokensMatch(tokens, i, e.key) {
			return e, len(e.key)
		}
	}
	return nil, 0
}

func tokensMatch(tokens []string, i int, want []string) bool {
	if i+len(want) > len(tokens) {
		return false
	}
	for j, w := range want {
		if tokens[i+j] != w {
			return false
		}
	}
	return true
}
