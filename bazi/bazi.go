// Package bazi is a client for the four-pillars calculation service and
// the get_bazi_detail tool exposed to models.
package bazi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/RAGGA-TIME/lifekline/iox"
)

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 15 * time.Second

// Gender and calendar values accepted by the service.
const (
	GenderMale     = "male"
	GenderFemale   = "female"
	CalendarSolar  = "solar"
	CalendarLunar  = "lunar"
	sequenceJoiner = " -> "
)

// ErrInvalidQuery is returned when a query is missing required fields.
var ErrInvalidQuery = errors.New("bazi: invalid query")

// Query is the birth moment sent to the service.
type Query struct {
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	Day          int    `json:"day"`
	Hour         int    `json:"hour"`
	Minute       int    `json:"minute"`
	Gender       string `json:"gender"`
	CalendarType string `json:"calendarType"`
	BirthPlace   string `json:"birthPlace,omitempty"`
}

// Validate checks ranges and enum values.
func (q Query) Validate() error {
	switch {
	case q.Year <= 0:
		return fmt.Errorf("%w: year must be positive", ErrInvalidQuery)
	case q.Month < 1 || q.Month > 12:
		return fmt.Errorf("%w: month %d out of range", ErrInvalidQuery, q.Month)
	case q.Day < 1 || q.Day > 31:
		return fmt.Errorf("%w: day %d out of range", ErrInvalidQuery, q.Day)
	case q.Hour < 0 || q.Hour > 23:
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidQuery, q.Hour)
	case q.Minute < 0 || q.Minute > 59:
		return fmt.Errorf("%w: minute %d out of range", ErrInvalidQuery, q.Minute)
	case q.Gender != GenderMale && q.Gender != GenderFemale:
		return fmt.Errorf("%w: gender %q", ErrInvalidQuery, q.Gender)
	case q.CalendarType != CalendarSolar && q.CalendarType != CalendarLunar:
		return fmt.Errorf("%w: calendarType %q", ErrInvalidQuery, q.CalendarType)
	}
	return nil
}

// MergeArgs overlays the JSON tool-call arguments onto q. Absent or
// zero-valued string fields keep q's values; hour and minute are taken
// whenever present. Malformed arguments leave q unchanged.
func (q Query) MergeArgs(args string) (Query, error) {
	if strings.TrimSpace(args) == "" {
		return q, nil
	}
	var in struct {
		Year         *int   `json:"year"`
		Month        *int   `json:"month"`
		Day          *int   `json:"day"`
		Hour         *int   `json:"hour"`
		Minute       *int   `json:"minute"`
		Gender       string `json:"gender"`
		CalendarType string `json:"calendarType"`
		BirthPlace   string `json:"birthPlace"`
	}
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return q, fmt.Errorf("bazi: decode tool arguments: %w", err)
	}
	if in.Year != nil && *in.Year != 0 {
		q.Year = *in.Year
	}
	if in.Month != nil && *in.Month != 0 {
		q.Month = *in.Month
	}
	if in.Day != nil && *in.Day != 0 {
		q.Day = *in.Day
	}
	if in.Hour != nil {
		q.Hour = *in.Hour
	}
	if in.Minute != nil {
		q.Minute = *in.Minute
	}
	if in.Gender != "" {
		q.Gender = in.Gender
	}
	if in.CalendarType != "" {
		q.CalendarType = in.CalendarType
	}
	if in.BirthPlace != "" {
		q.BirthPlace = in.BirthPlace
	}
	return q, nil
}

// FourPillars holds the year, month, day and hour stem-branch pairs.
type FourPillars struct {
	Year  string `json:"year"`
	Month string `json:"month"`
	Day   string `json:"day"`
	Hour  string `json:"hour"`
}

// DaYun is the ten-year luck cycle information.
type DaYun struct {
	StartAge  int      `json:"startAge"`
	Direction string   `json:"direction"`
	Sequence  []string `json:"sequence"`
}

// Metadata echoes the normalized request.
type Metadata struct {
	SolarDatetime string `json:"solarDatetime,omitempty"`
	Gender        string `json:"gender,omitempty"`
	CalendarType  string `json:"calendarType,omitempty"`
	BirthPlace    string `json:"birthPlace,omitempty"`
	Note          string `json:"note,omitempty"`
}

// Chart is the service response.
type Chart struct {
	FourPillars FourPillars `json:"fourPillars"`
	DaYun       DaYun       `json:"daYun"`
	Metadata    Metadata    `json:"metadata"`
}

// Pillars returns the four pillars in year, month, day, hour order.
func (c *Chart) Pillars() []string {
	return []string{c.FourPillars.Year, c.FourPillars.Month, c.FourPillars.Day, c.FourPillars.Hour}
}

// Summary renders the chart as the instruction text handed back to the model.
func (c *Chart) Summary() string {
	var sb strings.Builder
	sb.WriteString("八字计算完成。请基于以下准确的八字四柱和大运信息进行命理分析：\n")
	fmt.Fprintf(&sb, "年柱：%s\n", c.FourPillars.Year)
	fmt.Fprintf(&sb, "月柱：%s\n", c.FourPillars.Month)
	fmt.Fprintf(&sb, "日柱：%s\n", c.FourPillars.Day)
	fmt.Fprintf(&sb, "时柱：%s\n", c.FourPillars.Hour)
	fmt.Fprintf(&sb, "起运年龄：%d岁\n", c.DaYun.StartAge)
	fmt.Fprintf(&sb, "大运方向：%s\n", c.DaYun.Direction)
	fmt.Fprintf(&sb, "大运序列：%s", strings.Join(c.DaYun.Sequence, sequenceJoiner))
	return sb.String()
}

// StatusError is returned for non-2xx service responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bazi: unexpected status %d: %s", e.Code, e.Body)
}

// Config configures the client.
type Config struct {
	// Endpoint is the full URL of the calculation service (required).
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the calculation service.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("bazi client requires an endpoint")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{endpoint: strings.TrimSpace(cfg.Endpoint), http: cfg.HTTPClient}, nil
}

// Lookup validates q and POSTs it to the service.
func (c *Client) Lookup(ctx context.Context, q Query) (*Chart, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("bazi: marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bazi: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bazi: request failed: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: iox.ErrorBody(resp.Body)}
	}

	var chart Chart
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("bazi: decode response: %w", err)
	}
	if chart.FourPillars.Year == "" || chart.FourPillars.Day == "" {
		return nil, errors.New("bazi: response is missing four pillars")
	}
	return &chart, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
