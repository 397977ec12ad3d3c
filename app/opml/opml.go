// Package opml handles importing and exporting feed subscriptions as OPML.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"time"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a single outline element (category folder or feed).
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// FeedEntry is a flattened subscription with its category path.
type FeedEntry struct {
	CategoryPath []string // e.g., ["Tech", "Go"]
	Title        string
	URL          string
	SiteURL      string
}

// Parse reads an OPML document and returns a flat list of FeedEntry.
// Outlines with an xmlUrl are feeds; the rest are treated as folders and
// contribute to the category path of everything nested under them.
func Parse(r io.Reader) ([]FeedEntry, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode OPML: %w", err)
	}
	var entries []FeedEntry
	var walk func(outlines []Outline, path []string)
	walk = func(outlines []Outline, path []string) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				entries = append(entries, FeedEntry{
					CategoryPath: append([]string{}, path...),
					Title:        title,
					URL:          o.XMLURL,
					SiteURL:      o.HTMLURL,
				})
			} else if len(o.Outlines) > 0 {
				name := o.Text
				if name == "" {
					name = o.Title
				}
				walk(o.Outlines, append(path, name))
			}
		}
	}
	walk(doc.Body.Outlines, nil)
	return entries, nil
}

// Export generates an OPML 2.0 document from a flat list of subscriptions.
// Entries with a category path are grouped under a folder outline named
// after the first path element; folders and root feeds come out in stable
// alphabetical order.
func Export(title string, entries []FeedEntry) ([]byte, error) {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: time.Now().Format(time.RFC1123Z),
		},
	}

	folderOutlines := make(map[string]*Outline)
	var rootOutlines []Outline

	for _, e := range entries {
		feedOutline := Outline{
			Text:    e.Title,
			Title:   e.Title,
			Type:    "rss",
			XMLURL:  e.URL,
			HTMLURL: e.SiteURL,
		}
		if len(e.CategoryPath) == 0 {
			rootOutlines = append(rootOutlines, feedOutline)
			continue
		}
		folderName := e.CategoryPath[0]
		if fo, ok := folderOutlines[folderName]; ok {
			fo.Outlines = append(fo.Outlines, feedOutline)
		} else {
			folderOutlines[folderName] = &Outline{
				Text:     folderName,
				Title:    folderName,
				Outlines: []Outline{feedOutline},
			}
		}
	}

	folderNames := make([]string, 0, len(folderOutlines))
	for name := range folderOutlines {
		folderNames = append(folderNames, name)
	}
	sort.Strings(folderNames)

	sort.Slice(rootOutlines, func(i, j int) bool {
		return rootOutlines[i].Text < rootOutlines[j].Text
	})
	for _, name := range folderNames {
		rootOutlines = append(rootOutlines, *folderOutlines[name])
	}
	doc.Body.Outlines = rootOutlines

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
