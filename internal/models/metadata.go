package models

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Metadata is the scraped description of a media item, serialized to an NFO
// sidecar document that media servers (Kodi, Jellyfin, Emby) understand.
type Metadata struct {
	// Identifier is the unique ID, typically combining site and code.
	Identifier string
	Title      string
	URL        string
	Site       string
	Code       string

	Tagline       string
	OriginalTitle string
	Plot          string
	Director      string
	Studio        string
	Premiered     string // YYYY-MM-DD
	Year          int
	Runtime       int // minutes
	Rating        float64
	MPAA          string
	Serial        string
	Trailer       string
	Actors        []string
	Genres        []string
	Tags          []string
}

// nfoUniqueID is a <uniqueid type="..."> element.
type nfoUniqueID struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// nfoActor is an <actor> element with a nested name.
type nfoActor struct {
	Name string `xml:"name"`
	Type string `xml:"type"`
}

type nfoSet struct {
	Name string `xml:"name"`
}

// nfoMovie mirrors the Kodi movie NFO schema for the fields we populate.
type nfoMovie struct {
	XMLName       xml.Name      `xml:"movie"`
	Title         string        `xml:"title"`
	UniqueIDs     []nfoUniqueID `xml:"uniqueid"`
	Tagline       string        `xml:"tagline,omitempty"`
	OriginalTitle string        `xml:"originaltitle,omitempty"`
	Plot          string        `xml:"plot,omitempty"`
	Rating        string        `xml:"rating,omitempty"`
	Premiered     string        `xml:"premiered,omitempty"`
	Year          string        `xml:"year,omitempty"`
	Runtime       string        `xml:"runtime,omitempty"`
	MPAA          string        `xml:"mpaa,omitempty"`
	Director      string        `xml:"director,omitempty"`
	Studio        string        `xml:"studio,omitempty"`
	URL           string        `xml:"url,omitempty"`
	Set           *nfoSet       `xml:"set,omitempty"`
	Trailer       string        `xml:"trailer,omitempty"`
	Genres        []string      `xml:"genre,omitempty"`
	Tags          []string      `xml:"tag,omitempty"`
	Actors        []nfoActor    `xml:"actor,omitempty"`
}

// ToNFO serializes the metadata to an XML NFO document.
func (m *Metadata) ToNFO() (string, error) {
	doc := nfoMovie{
		Title: m.Title,
		UniqueIDs: []nfoUniqueID{
			{Type: "gtid", Value: m.Identifier},
			{Type: "gtcode", Value: m.Code},
			{Type: "gtsite", Value: m.Site},
			{Type: "gturl", Value: m.URL},
		},
		Tagline:       m.Tagline,
		OriginalTitle: m.OriginalTitle,
		Plot:          m.Plot,
		Premiered:     m.Premiered,
		MPAA:          m.MPAA,
		Director:      m.Director,
		Studio:        m.Studio,
		URL:           m.URL,
		Trailer:       m.Trailer,
		Genres:        dedupe(m.Genres),
		Tags:          dedupe(m.Tags),
	}

	if m.Rating > 0 {
		doc.Rating = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.1f", m.Rating), "0"), ".")
	}
	year := m.Year
	if year == 0 && len(m.Premiered) >= 4 {
		// Derive the year from the premiere date when not set explicitly.
		var parsed int
		if _, err := fmt.Sscanf(m.Premiered[:4], "%d", &parsed); err == nil {
			year = parsed
		}
	}
	if year > 0 {
		doc.Year = fmt.Sprintf("%d", year)
	}
	if m.Runtime > 0 {
		doc.Runtime = fmt.Sprintf("%d", m.Runtime)
	}
	if m.Serial != "" {
		doc.Set = &nfoSet{Name: m.Serial}
	}
	for _, actor := range dedupe(m.Actors) {
		doc.Actors = append(doc.Actors, nfoActor{Name: actor, Type: "Actor"})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling NFO: %w", err)
	}
	return xml.Header + string(body) + "\n", nil
}

// dedupe removes duplicates while keeping first-seen order.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
