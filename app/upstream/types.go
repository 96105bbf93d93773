package upstream

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// envelope mirrors {"data":{"response":{"body":{"items":{"item":[...]}}}}}.
type envelope[T any] struct {
	Data struct {
		Response struct {
			Header struct {
				ResultCode string `json:"resultCode"`
				ResultMsg  string `json:"resultMsg"`
			} `json:"header"`
			Body struct {
				Items itemList[T] `json:"items"`
			} `json:"body"`
		} `json:"response"`
	} `json:"data"`
}

// itemList accepts the shapes the upstream uses for "items": an object whose
// "item" is an array or a single object, or an empty string / null when a
// page has no results.
type itemList[T any] struct {
	Item []T
}

func (l *itemList[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isEmptyJSON(data) {
		l.Item = nil
		return nil
	}

	var raw struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse items: %w", err)
	}

	item := bytes.TrimSpace(raw.Item)
	if isEmptyJSON(item) {
		l.Item = nil
		return nil
	}

	if item[0] == '[' {
		return json.Unmarshal(item, &l.Item)
	}

	var single T
	if err := json.Unmarshal(item, &single); err != nil {
		return fmt.Errorf("failed to parse item: %w", err)
	}
	l.Item = []T{single}
	return nil
}

func isEmptyJSON(data []byte) bool {
	return len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`))
}

// APIError is a non-200 response from the upstream.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Temporary reports whether the request may succeed when repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
