// Package naming derives filesystem-safe names from item attributes.
// Folder structures and filename prefixes are rendered from templates with
// {code}, {studio}, {actors}, {title} and {year} placeholders.
package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// filesystem-reserved characters stripped from every rendered component
var reservedChars = strings.NewReplacer(
	"/", "", "\\", "", ":", "", "*", "", "?", "",
	`"`, "", "<", "", ">", "", "|", "",
)

// Normalize makes a string safe for use in a file or folder name: NFC
// normalization, whitespace collapsing, and removal of reserved characters.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(reservedChars.Replace(s))
}

// Attributes holds the descriptive fields a pattern can reference.
type Attributes struct {
	Code   string
	Studio string
	Actors []string
	Title  string
	Year   int
}

// Render substitutes the attributes into the pattern. Every substituted value
// is normalized; unknown placeholders are left untouched.
func Render(pattern string, attrs Attributes) string {
	actors := make([]string, 0, len(attrs.Actors))
	for _, actor := range attrs.Actors {
		if normalized := Normalize(actor); normalized != "" {
			actors = append(actors, normalized)
		}
	}

	replacer := strings.NewReplacer(
		"{code}", Normalize(attrs.Code),
		"{studio}", Normalize(attrs.Studio),
		"{actors}", strings.Join(actors, " "),
		"{title}", Normalize(attrs.Title),
		"{year}", yearString(attrs.Year),
	)
	return strings.TrimSpace(replacer.Replace(pattern))
}

func yearString(year int) string {
	if year <= 0 {
		return ""
	}
	return strconv.Itoa(year)
}

// Hash returns the hex SHA-256 of s, used to synthesize a stable code for
// items whose site provides none.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Identifier builds the unique item identifier from site, code and URL.
func Identifier(site, code, url string) string {
	return site + "-" + code + "-" + Hash(url)
}
