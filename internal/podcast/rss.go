package podcast

import (
	"encoding/xml"
	"fmt"
	"time"
)

// XML document types for RSS 2.0 with the iTunes podcast namespace.

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Itunes  string     `xml:"xmlns:itunes,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Language      string    `xml:"language"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Author        string    `xml:"itunes:author"`
	Owner         rssOwner  `xml:"itunes:owner"`
	Image         *rssImage `xml:"itunes:image,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssOwner struct {
	Name string `xml:"itunes:name"`
}

type rssImage struct {
	Href string `xml:"href,attr"`
}

type rssItem struct {
	Title       string       `xml:"title"`
	GUID        rssGUID      `xml:"guid"`
	Link        string       `xml:"link"`
	Description string       `xml:"description"`
	PubDate     string       `xml:"pubDate"`
	Author      string       `xml:"itunes:author"`
	Duration    string       `xml:"itunes:duration"`
	Image       *rssImage    `xml:"itunes:image,omitempty"`
	Enclosure   rssEnclosure `xml:"enclosure"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// Serialize renders the podcast as UTF-8 RSS XML bytes.
func Serialize(p *Podcast) ([]byte, error) {
	doc := rssDoc{
		Version: "2.0",
		Itunes:  "http://www.itunes.com/dtds/podcast-1.0.dtd",
		Channel: rssChannel{
			Title:         p.Title,
			Link:          p.Link,
			Language:      p.Language,
			Description:   p.Description,
			LastBuildDate: p.CreatedAt.UTC().Format(time.RFC1123Z),
			Author:        p.AuthorAndOwnerName,
			Owner:         rssOwner{Name: p.AuthorAndOwnerName},
		},
	}
	if p.ImageURL != "" {
		doc.Channel.Image = &rssImage{Href: p.ImageURL}
	}
	for i := range p.Episodes {
		ep := &p.Episodes[i]
		item := rssItem{
			Title:       ep.Title,
			GUID:        rssGUID{IsPermaLink: "false", Value: ep.Enclosure.LocalURL},
			Link:        ep.Link,
			Description: ep.Description,
			PubDate:     ep.PubDate.UTC().Format(time.RFC1123Z),
			Author:      ep.Author,
			Duration:    formatDuration(ep.DurationSeconds),
			Enclosure: rssEnclosure{
				URL:    ep.Enclosure.LocalURL,
				Length: ep.Enclosure.LengthBytes,
				Type:   ep.Enclosure.MimeType,
			},
		}
		if ep.ImageURL != "" {
			item.Image = &rssImage{Href: ep.ImageURL}
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize rss: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// formatDuration renders seconds as H:MM:SS, or M:SS under an hour.
func formatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
