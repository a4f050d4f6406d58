// Package entsoe talks to the ENTSO-E transparency platform: the area
// catalog, the REST client for actual generation per production type,
// and the market document decoding.
package entsoe

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rohanswami293875/Entsoe-Generation/internal/pipeline"
)

// DefaultBaseURL is the production endpoint of the transparency
// platform's REST API.
const DefaultBaseURL = "https://web-api.tp.entsoe.eu/api"

const (
	documentTypeGeneration = "A75" // actual generation per type
	processTypeRealised    = "A16"
	periodLayout           = "200601021504"

	// maxResponseBytes bounds document reads. A month of quarter-hourly
	// data for one zone stays well under this.
	maxResponseBytes = 32 << 20
)

// Config carries the client settings. Zero values fall back to
// conservative defaults; only Token is required.
type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	Burst     int
}

// Client issues generation queries against the transparency platform.
// It performs exactly one HTTP request per call and leaves retrying to
// the pipeline fetcher.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ pipeline.Fetcher = (*Client)(nil)

// NewClient builds a Client from cfg.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		logger:  logger.With("component", "entsoe"),
	}
}

// FetchRaw retrieves actual generation per production type for one EIC
// domain over [start, end]. A request that matches no data returns nil
// rows and no error. The security token never appears in logs or
// errors.
func (c *Client) FetchRaw(ctx context.Context, domain string, start, end time.Time) ([]pipeline.Row, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(domain, start, end), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query transparency platform: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	reason := ackReason(body)
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest && isNoData(reason):
		// The platform answers some empty ranges with a rejected
		// acknowledgement instead of an empty document.
	default:
		return nil, &RequestError{Status: resp.StatusCode, Reason: reason}
	}

	if reason != "" || bytes.Contains(body, []byte("Acknowledgement_MarketDocument")) {
		c.logger.InfoContext(ctx, "no data for interval",
			"domain", domain,
			"start", start.UTC().Format(periodLayout),
			"end", end.UTC().Format(periodLayout),
			"reason", reason)
		return nil, nil
	}

	var doc glMarketDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, &DecodeError{Domain: domain, Err: err}
	}
	rows, err := doc.rows()
	if err != nil {
		return nil, &DecodeError{Domain: domain, Err: err}
	}
	c.logger.DebugContext(ctx, "fetched generation document",
		"domain", domain,
		"series", len(doc.TimeSeries),
		"rows", len(rows))
	return rows, nil
}

func (c *Client) requestURL(domain string, start, end time.Time) string {
	q := url.Values{}
	q.Set("securityToken", c.token)
	q.Set("documentType", documentTypeGeneration)
	q.Set("processType", processTypeRealised)
	q.Set("in_Domain", domain)
	q.Set("periodStart", start.UTC().Format(periodLayout))
	q.Set("periodEnd", end.UTC().Format(periodLayout))
	return c.baseURL + "?" + q.Encode()
}

// ackReason extracts the reason text from an acknowledgement body, or
// returns "" when the body is not an acknowledgement.
func ackReason(body []byte) string {
	if !bytes.Contains(body, []byte("Acknowledgement_MarketDocument")) {
		return ""
	}
	var ack acknowledgementDocument
	if err := xml.Unmarshal(body, &ack); err != nil {
		return ""
	}
	return strings.TrimSpace(ack.Reason.Text)
}

// isNoData reports whether an acknowledgement reason means "nothing
// matched" as opposed to a genuinely rejected request.
func isNoData(reason string) bool {
	return strings.Contains(strings.ToLower(reason), "no matching data")
}
