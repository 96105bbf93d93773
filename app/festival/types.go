package festival

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	// PlaceholderPeriod is shown until a record's detail resolves. It never parses as a Period.
	PlaceholderPeriod = "기간 정보 없음"
	// UnknownRegionLabel prefixes the location of records without a known area code.
	UnknownRegionLabel = "미정"
	// RegionAll disables the region criterion.
	RegionAll = "all"
)

// SummaryRecord is a catalog entry as returned by a listing or search page.
type SummaryRecord struct {
	ID            string
	ContentTypeID string
	Title         string
	AreaCode      string
	Addr1         string
	Addr2         string
	Image         string
	Image2        string
	Overview      string
	CreatedAt     time.Time // used for featured ranking
}

// DetailRecord is the per-item data resolved from the detail source.
type DetailRecord struct {
	ID          string
	Period      string // "YYYY.MM.DD ~ YYYY.MM.DD"
	Venue       string
	Description string // plain text, searched by the filterer
	Content     string // markdown rendering of the description, display only
}

// Details is a read-only snapshot of resolved detail records keyed by item ID.
type Details map[string]DetailRecord

// View is a summary record merged with the best available detail.
type View struct {
	ID             string
	ContentTypeID  string
	Name           string
	AreaCode       string
	Location       string
	Keywords       []string
	Period         string
	Venue          string
	Description    string
	Content        string
	Image          string
	Image2         string
	CreatedAt      time.Time
	DetailResolved bool
}

type KeywordMode string

const (
	MatchAll KeywordMode = "all"
	MatchAny KeywordMode = "any"
)

type Season string

const (
	SeasonAll    Season = "all"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
)

var seasonTokens = map[Season]string{
	SeasonSpring: "봄",
	SeasonSummer: "여름",
	SeasonAutumn: "가을",
	SeasonWinter: "겨울",
}

// Token returns the keyword a record must carry to match the season.
func (s Season) Token() (string, bool) {
	token, ok := seasonTokens[s]
	return token, ok
}

// FilterState is replaced as a whole on every user action.
// Query and Keywords are mutually exclusive: setting one clears the other.
type FilterState struct {
	Query    string
	Keywords []string
	Mode     KeywordMode
	Region   string
	Season   Season
	Start    *Date
	End      *Date
}

func DefaultFilter() FilterState {
	return FilterState{
		Mode:   MatchAny,
		Region: RegionAll,
		Season: SeasonAll,
	}
}

func (f FilterState) WithQuery(query string) FilterState {
	f.Query = query
	f.Keywords = nil
	return f
}

// WithKeywords trims each keyword and drops the blank ones. When none remain
// the filter stops searching.
func (f FilterState) WithKeywords(keywords []string, mode KeywordMode) FilterState {
	f.Keywords = cleanKeywords(keywords)
	f.Query = ""
	if mode != "" {
		f.Mode = mode
	}
	return f
}

func (f FilterState) WithRegion(region string) FilterState {
	f.Region = region
	return f
}

func (f FilterState) WithSeason(season Season) FilterState {
	f.Season = season
	return f
}

func (f FilterState) WithDateRange(start, end *Date) FilterState {
	f.Start = start
	f.End = end
	return f
}

// Normalized fills empty selectors with their "all" defaults and cleans keywords.
func (f FilterState) Normalized() FilterState {
	f.Keywords = cleanKeywords(f.Keywords)
	if f.Mode == "" {
		f.Mode = MatchAny
	}
	if f.Region == "" {
		f.Region = RegionAll
	}
	if f.Season == "" {
		f.Season = SeasonAll
	}
	return f
}

// IsSearching reports whether the search source, not the listing source, backs the catalog.
func (f FilterState) IsSearching() bool {
	return strings.TrimSpace(f.Query) != "" || len(f.Keywords) > 0
}

// SearchKeyword is the term sent upstream: the first keyword, else the trimmed query.
func (f FilterState) SearchKeyword() string {
	if len(f.Keywords) > 0 {
		return f.Keywords[0]
	}
	return strings.TrimSpace(f.Query)
}

func cleanKeywords(keywords []string) []string {
	var cleaned []string
	for _, keyword := range keywords {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			cleaned = append(cleaned, keyword)
		}
	}
	return cleaned
}

func (f FilterState) HasDateRange() bool {
	return f.Start != nil && f.End != nil
}

func (f FilterState) Validate(regions RegionTable) error {
	if f.Query != "" && len(f.Keywords) > 0 {
		return fmt.Errorf("query and keywords are mutually exclusive")
	}
	for _, keyword := range f.Keywords {
		if strings.TrimSpace(keyword) == "" {
			return fmt.Errorf("blank keyword")
		}
	}
	switch f.Mode {
	case MatchAll, MatchAny:
	default:
		return fmt.Errorf("invalid keyword mode: %q", f.Mode)
	}
	if f.Season != SeasonAll {
		if _, ok := f.Season.Token(); !ok {
			return fmt.Errorf("invalid season: %q", f.Season)
		}
	}
	if f.Region != RegionAll {
		if _, ok := regions.Label(f.Region); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownRegion, f.Region)
		}
	}
	if f.HasDateRange() && f.Start.After(*f.End) {
		return fmt.Errorf("date range start %s is after end %s", f.Start, f.End)
	}
	return nil
}

// Mode selects which upstream source feeds the accumulator.
type Mode interface {
	fmt.Stringer
	mode()
}

type BrowseParams struct {
	AreaCode string
}

type Browsing struct {
	Params BrowseParams
}

type Searching struct {
	Keyword string
}

func (Browsing) mode()  {}
func (Searching) mode() {}

func (b Browsing) String() string {
	if b.Params.AreaCode == "" {
		return "browsing"
	}
	return "browsing(area=" + b.Params.AreaCode + ")"
}

func (s Searching) String() string {
	return "searching(" + s.Keyword + ")"
}

// ModeFor derives the active mode. When delegateRegion is set the region code is
// sent upstream, so a region change is a mode change.
func ModeFor(f FilterState, delegateRegion bool) Mode {
	if f.IsSearching() {
		return Searching{Keyword: f.SearchKeyword()}
	}
	params := BrowseParams{}
	if delegateRegion && f.Region != "" && f.Region != RegionAll {
		params.AreaCode = f.Region
	}
	return Browsing{Params: params}
}

type ListingSource interface {
	FetchPage(ctx context.Context, params BrowseParams, page int) ([]SummaryRecord, error)
}

type SearchSource interface {
	FetchSearchPage(ctx context.Context, keyword string, page int) ([]SummaryRecord, error)
}

type DetailSource interface {
	FetchDetail(ctx context.Context, id, contentTypeID string) (DetailRecord, error)
}
