package resolve

import (
	"regexp"
	"strings"
)

// AddressCandidate is a street address pulled from a listing-site page,
// with the site it came from and its rank on that site.
type AddressCandidate struct {
	Text string
	Site string
	Rank int
}

// Street-address patterns. The first matches English-style addresses
// (number then street name then type); the second matches French-style
// addresses where the type precedes the name (e.g. "3895 boulevard
// Saint-Laurent").
var (
	addressEnglishRe = regexp.MustCompile(
		`(?i)\b\d{1,6}[a-z]?\s+(?:[A-Za-zÀ-ÿ0-9'.\-]+\s+){1,4}` +
			`(?:street|st|avenue|ave|boulevard|blvd|road|rd|drive|dr|lane|ln|way|place|pl|court|ct|crescent|cres|square|sq|terrace)\b\.?` +
			`(?:\s+(?:north|south|east|west|n|s|e|w|ouest|est))?\b`)

	addressFrenchRe = regexp.MustCompile(
		`(?i)\b\d{1,6}[a-z]?,?\s+(?:rue|avenue|av|boulevard|boul|chemin|ch|côte|place|promenade|montée)\s+` +
			`(?:[A-Za-zÀ-ÿ0-9'.\-]+\s*){1,4}`)
)

// ExtractAddresses finds up to max street-address strings in page text, in
// order of appearance, with duplicates removed case-insensitively.
func ExtractAddresses(text string, max int) []string {
	if max <= 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, re := range []*regexp.Regexp{addressEnglishRe, addressFrenchRe} {
		for _, m := range re.FindAllString(text, -1) {
			addr := cleanAddress(m)
			if addr == "" {
				continue
			}
			key := strings.ToLower(addr)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, addr)
			if len(out) >= max {
				return out
			}
		}
	}
	return out
}

func cleanAddress(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " ,.")
	// A bare number or a number with a one-letter fragment is noise.
	if len(s) < 8 {
		return ""
	}
	return s
}
