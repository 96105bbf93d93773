// Package upstream is the HTTP client for the festival catalog service.
package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/lysyi3m/festival-comb/app/festival"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultRateLimit      = 10
	DefaultPageSize       = 12
	DefaultListLanguage   = "kor"
	DefaultDetailLanguage = "eng"
	DefaultEventStartDate = "20240701"
	DefaultMaxRetries     = 3
	DefaultUserAgent      = "Festival Comb/1.0"
)

var (
	_ festival.ListingSource = (*Client)(nil)
	_ festival.SearchSource  = (*Client)(nil)
	_ festival.DetailSource  = (*Client)(nil)
)

type Client struct {
	baseURL        string
	userAgent      string
	listLanguage   string
	detailLanguage string
	eventStartDate string
	pageSize       int
	maxRetries     uint
	retryInterval  time.Duration
	httpClient     *http.Client
	limiter        *rate.Limiter
	normalizer     *festival.Normalizer
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables the limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

func WithLanguage(list, detail string) ClientOption {
	return func(c *Client) {
		if list != "" {
			c.listLanguage = list
		}
		if detail != "" {
			c.detailLanguage = detail
		}
	}
}

func WithPageSize(pageSize int) ClientOption {
	return func(c *Client) {
		if pageSize > 0 {
			c.pageSize = pageSize
		}
	}
}

func WithEventStartDate(date string) ClientOption {
	return func(c *Client) {
		c.eventStartDate = date
	}
}

// WithRetry sets how often a 429/5xx or transport failure is repeated and the
// initial backoff interval.
func WithRetry(maxRetries int, interval time.Duration) ClientOption {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = uint(maxRetries)
		}
		if interval > 0 {
			c.retryInterval = interval
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		userAgent:      DefaultUserAgent,
		listLanguage:   DefaultListLanguage,
		detailLanguage: DefaultDetailLanguage,
		eventStartDate: DefaultEventStartDate,
		pageSize:       DefaultPageSize,
		maxRetries:     DefaultMaxRetries,
		retryInterval:  500 * time.Millisecond,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		normalizer: festival.NewNormalizer(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) PageSize() int {
	return c.pageSize
}

// FetchPage returns one page of the festival listing. A page past the end is empty, not an error.
func (c *Client) FetchPage(ctx context.Context, params festival.BrowseParams, page int) ([]festival.SummaryRecord, error) {
	query := url.Values{}
	query.Set("lang", c.listLanguage)
	query.Set("numOfRows", strconv.Itoa(c.pageSize))
	query.Set("pageNo", strconv.Itoa(page))
	if c.eventStartDate != "" {
		query.Set("eventStartDate", c.eventStartDate)
	}
	if params.AreaCode != "" {
		query.Set("areaCode", params.AreaCode)
	}

	items, err := getItems[festival.RawItem](ctx, c, "/festivals/list", query)
	if err != nil {
		return nil, festival.NewFetchError(festival.SourceListing, fmt.Errorf("failed to fetch page %d: %w", page, err))
	}

	return c.normalizer.Summaries(items), nil
}

func (c *Client) FetchSearchPage(ctx context.Context, keyword string, page int) ([]festival.SummaryRecord, error) {
	query := url.Values{}
	query.Set("keyword", keyword)
	query.Set("lang", c.listLanguage)
	query.Set("pageNo", strconv.Itoa(page))
	query.Set("numOfRows", strconv.Itoa(c.pageSize))

	items, err := getItems[festival.RawItem](ctx, c, "/festivals/search", query)
	if err != nil {
		return nil, festival.NewFetchError(festival.SourceSearch, fmt.Errorf("failed to search %q page %d: %w", keyword, page, err))
	}

	return c.normalizer.Summaries(items), nil
}

// FetchDetail loads the event intro (dates, venue) and the overview concurrently.
func (c *Client) FetchDetail(ctx context.Context, id, contentTypeID string) (festival.DetailRecord, error) {
	var (
		intros []festival.RawIntro
		infos  []festival.RawInfo
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		query := url.Values{}
		query.Set("lang", c.detailLanguage)
		query.Set("contentId", id)
		query.Set("contentTypeId", contentTypeID)

		items, err := getItems[festival.RawIntro](ctx, c, "/festivals/detailIntro", query)
		if err != nil {
			return fmt.Errorf("failed to fetch intro: %w", err)
		}
		intros = items
		return nil
	})

	p.Go(func(ctx context.Context) error {
		query := url.Values{}
		query.Set("lang", c.detailLanguage)
		query.Set("contentId", id)

		items, err := getItems[festival.RawInfo](ctx, c, "/festivals/info", query)
		if err != nil {
			return fmt.Errorf("failed to fetch info: %w", err)
		}
		infos = items
		return nil
	})

	if err := p.Wait(); err != nil {
		return festival.DetailRecord{}, festival.NewFetchError(festival.SourceDetail, fmt.Errorf("detail %s: %w", id, err))
	}

	if len(intros) == 0 {
		return festival.DetailRecord{}, festival.NewFetchError(festival.SourceDetail, fmt.Errorf("detail %s: no intro returned", id))
	}

	var info *festival.RawInfo
	if len(infos) > 0 {
		info = &infos[0]
	}

	return c.normalizer.Detail(id, intros[0], info), nil
}

func getItems[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var result envelope[T]
	if err := c.get(ctx, path, query, &result); err != nil {
		return nil, err
	}
	return result.Data.Response.Body.Items.Item, nil
}

// get performs a rate-limited GET, retrying transport failures and 429/5xx responses.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL = reqURL + "?" + params.Encode()
	}

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++

		if err := c.limiter.Wait(ctx); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		slog.Debug("Upstream request", "path", path, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return struct{}{}, backoff.Permanent(ctx.Err())
			}
			return struct{}{}, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(body)),
				Endpoint:   path,
			}
			if apiErr.Temporary() {
				return struct{}{}, apiErr
			}
			return struct{}{}, backoff.Permanent(apiErr)
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return struct{}{}, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.retryInterval

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(c.maxRetries+1),
	)
	return err
}
