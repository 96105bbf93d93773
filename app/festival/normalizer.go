package festival

import (
	"log/slog"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const createdTimeLayout = "20060102150405"

// RawItem is a catalog item as delivered by the list and search endpoints.
type RawItem struct {
	ContentID     string `json:"contentid"`
	ContentTypeID string `json:"contenttypeid"`
	Title         string `json:"title"`
	AreaCode      string `json:"areacode"`
	Addr1         string `json:"addr1"`
	Addr2         string `json:"addr2"`
	FirstImage    string `json:"firstimage"`
	FirstImage2   string `json:"firstimage2"`
	Overview      string `json:"overview"`
	CreatedTime   string `json:"createdtime"`
}

// RawIntro carries the event dates and venue of a single item.
type RawIntro struct {
	ContentID      string `json:"contentid"`
	EventStartDate string `json:"eventstartdate"`
	EventEndDate   string `json:"eventenddate"`
	EventPlace     string `json:"eventplace"`
}

// RawInfo carries the long-form overview of a single item.
type RawInfo struct {
	ContentID string `json:"contentid"`
	Title     string `json:"title"`
	Overview  string `json:"overview"`
}

type Normalizer struct {
	converter *md.Converter
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		converter: md.NewConverter("", true, nil),
	}
}

func (n *Normalizer) Summary(raw RawItem) SummaryRecord {
	record := SummaryRecord{
		ID:            strings.TrimSpace(raw.ContentID),
		ContentTypeID: strings.TrimSpace(raw.ContentTypeID),
		Title:         strings.TrimSpace(raw.Title),
		AreaCode:      strings.TrimSpace(raw.AreaCode),
		Addr1:         strings.TrimSpace(raw.Addr1),
		Addr2:         strings.TrimSpace(raw.Addr2),
		Image:         raw.FirstImage,
		Image2:        raw.FirstImage2,
		Overview:      htmlToText(raw.Overview),
	}

	if raw.CreatedTime != "" {
		if createdAt, err := time.ParseInLocation(createdTimeLayout, raw.CreatedTime, time.Local); err == nil {
			record.CreatedAt = createdAt
		}
	}

	return record
}

func (n *Normalizer) Summaries(raws []RawItem) []SummaryRecord {
	records := make([]SummaryRecord, 0, len(raws))
	for _, raw := range raws {
		record := n.Summary(raw)
		if record.ID == "" {
			continue
		}
		records = append(records, record)
	}
	return records
}

// Detail builds the detail record for id. info may be nil when the overview endpoint had nothing.
func (n *Normalizer) Detail(id string, intro RawIntro, info *RawInfo) DetailRecord {
	detail := DetailRecord{
		ID:     id,
		Period: FormatPeriod(intro.EventStartDate, intro.EventEndDate),
		Venue:  strings.TrimSpace(intro.EventPlace),
	}

	if info != nil && info.Overview != "" {
		detail.Description = htmlToText(info.Overview)

		content, err := n.converter.ConvertString(info.Overview)
		if err != nil {
			slog.Debug("Failed to convert overview to markdown", "id", id, "error", err)
		} else {
			detail.Content = strings.TrimSpace(content)
		}
	}

	return detail
}

// htmlToText flattens overview markup such as "<br>" line breaks into plain text.
func htmlToText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("br").ReplaceWithHtml("\n")

	return strings.TrimSpace(doc.Text())
}
