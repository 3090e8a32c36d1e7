package tvmaze

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"tvetl/internal/datasource/httpds"
)

// DefaultBaseURL is the web-channel schedule endpoint.
const DefaultBaseURL = "http://api.tvmaze.com/schedule/web"

// DateLayout is the date format the schedule endpoint and dump file names use.
const DateLayout = "2006-01-02"

// Client fetches one day of schedule at a time.
type Client struct {
	baseURL string
	http    *httpds.Client
}

// NewClient returns a Client for baseURL (DefaultBaseURL when empty) using hc
// as transport.
func NewClient(baseURL string, hc *httpds.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: baseURL, http: hc}
}

// ScheduleURL returns the request URL for date.
func (c *Client) ScheduleURL(date time.Time) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("tvmaze: base url: %w", err)
	}
	q := u.Query()
	q.Set("date", date.Format(DateLayout))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchSchedule returns the raw JSON payload for date. The payload is
// returned undecoded so callers can persist it verbatim before parsing.
func (c *Client) FetchSchedule(ctx context.Context, date time.Time) ([]byte, error) {
	u, err := c.ScheduleURL(date)
	if err != nil {
		return nil, err
	}
	body, err := c.http.GetBytes(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("tvmaze: schedule %s: %w", date.Format(DateLayout), err)
	}
	return body, nil
}
