package festival

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"
)

// Channel describes the RSS channel a filtered view is published under.
type Channel struct {
	Title       string
	Link        string
	Description string
	SelfLink    string
	Version     string
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(channel Channel, views []View, now time.Time) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", cmp.Or(channel.Title, "Festival Comb"), 4)
	g.writeElement(&buf, "link", channel.Link, 4)
	g.writeElement(&buf, "description", cmp.Or(channel.Description, "Filtered festival catalog"), 4)

	if channel.SelfLink != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(channel.SelfLink)))
	}

	g.writeElement(&buf, "lastBuildDate", now.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Festival-Comb/%s", cmp.Or(channel.Version, "dev")), 4)
	g.writeElement(&buf, "language", "ko", 4)

	for _, view := range views {
		g.writeItem(&buf, channel, view)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, channel Channel, view View) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(view.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", view.Name, 6)

	if channel.Link != "" {
		g.writeElement(buf, "link", fmt.Sprintf("%s/festivals/%s/%s",
			strings.TrimRight(channel.Link, "/"), view.ID, view.ContentTypeID), 6)
	}

	g.writeElement(buf, "description", g.describe(view), 6)

	if !view.CreatedAt.IsZero() {
		g.writeElement(buf, "pubDate", view.CreatedAt.Format(time.RFC1123Z), 6)
	}

	for _, keyword := range view.Keywords {
		if keyword != "" {
			g.writeElement(buf, "category", keyword, 6)
		}
	}

	if view.Image != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"image/jpeg\" />\n",
			html.EscapeString(view.Image)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) describe(view View) string {
	lines := []string{view.Period, view.Location}
	if view.Venue != "" {
		lines = append(lines, view.Venue)
	}
	lines = append(lines, cmp.Or(view.Description, "No description available"))
	return strings.Join(lines, "\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
