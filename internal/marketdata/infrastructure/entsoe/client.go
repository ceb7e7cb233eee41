package entsoe

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	marketdata "entsoe-etl/internal/marketdata/domain"
)

// DefaultBaseURL is the ENTSO-E Transparency Platform REST endpoint.
const DefaultBaseURL = "https://web-api.tp.entsoe.eu/api"

const (
	periodLayout     = "200601021504"
	reasonNoData     = "999"
	maxResponseBytes = 64 << 20
)

var (
	// ErrMissingToken is returned when no security token is configured.
	ErrMissingToken = errors.New("entsoe: empty security token")
	// ErrNoData is returned when the platform has no data for the requested window.
	ErrNoData = fmt.Errorf("entsoe: no matching data: %w", marketdata.ErrEmptyResult)
	// ErrInvalidWindow is returned when the window is empty or inverted.
	ErrInvalidWindow = errors.New("entsoe: invalid window")
)

// APIError is a non-2xx reply that is not a "no data" acknowledgement.
type APIError struct {
	StatusCode int
	Reason     string
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("entsoe: http %d", e.StatusCode)
	}
	return fmt.Sprintf("entsoe: http %d: %s", e.StatusCode, e.Reason)
}

// BalancingParams are the query codes of the procured balancing capacity (A81) request.
type BalancingParams struct {
	BusinessType        string
	ProcessType         string
	MarketAgreementType string
}

// DefaultBalancingParams requests procured capacity (B95) of the aFRR process (A52) on daily contracts.
func DefaultBalancingParams() BalancingParams {
	return BalancingParams{BusinessType: "B95", ProcessType: "A52", MarketAgreementType: "A01"}
}

// Client fetches raw market documents. It never retries.
type Client struct {
	baseURL   string
	token     string
	client    *http.Client
	limiter   *rate.Limiter
	balancing BalancingParams
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		if c != nil {
			client.client = c
		}
	}
}

// WithRequestsPerMinute caps the request rate shared by every goroutine using the client.
func WithRequestsPerMinute(n int) Option {
	return func(client *Client) {
		if n > 0 {
			client.limiter = rate.NewLimiter(rate.Limit(float64(n)/60), 1)
		}
	}
}

// WithBalancingParams overrides the balancing query codes.
func WithBalancingParams(p BalancingParams) Option {
	return func(client *Client) {
		defaults := DefaultBalancingParams()
		if p.BusinessType == "" {
			p.BusinessType = defaults.BusinessType
		}
		if p.ProcessType == "" {
			p.ProcessType = defaults.ProcessType
		}
		if p.MarketAgreementType == "" {
			p.MarketAgreementType = defaults.MarketAgreementType
		}
		client.balancing = p
	}
}

// NewClient constructs a client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(400.0/60), 1),
		balancing: DefaultBalancingParams(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch downloads the document of one kind for a zone and [start, end) window.
func (c *Client) Fetch(ctx context.Context, kind marketdata.DocumentKind, zone string, start, end time.Time) ([]byte, error) {
	if c == nil {
		return nil, errors.New("entsoe: nil client")
	}
	if zone == "" {
		return nil, errors.New("entsoe: empty zone")
	}
	if start.IsZero() || !end.After(start) {
		return nil, ErrInvalidWindow
	}
	query, err := c.query(kind, zone, start, end)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = c.baseURL
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("entsoe: read body: %w", err)
	}
	if resp.StatusCode >= 300 {
		code, reason := acknowledgementReason(body)
		if code == reasonNoData {
			return nil, ErrNoData
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Reason: reason}
	}
	return body, nil
}

func (c *Client) query(kind marketdata.DocumentKind, zone string, start, end time.Time) (url.Values, error) {
	q := url.Values{}
	q.Set("securityToken", c.token)
	q.Set("periodStart", start.UTC().Format(periodLayout))
	q.Set("periodEnd", end.UTC().Format(periodLayout))
	switch kind {
	case marketdata.KindBalancingReserve:
		q.Set("documentType", "A81")
		q.Set("businessType", c.balancing.BusinessType)
		q.Set("processType", c.balancing.ProcessType)
		q.Set("Type_MarketAgreement.Type", c.balancing.MarketAgreementType)
		q.Set("controlArea_Domain", zone)
	case marketdata.KindDayAheadPrice:
		q.Set("documentType", "A44")
		q.Set("in_Domain", zone)
		q.Set("out_Domain", zone)
	default:
		return nil, marketdata.ErrUnknownDocumentKind
	}
	return q, nil
}

type acknowledgement struct {
	Reasons []struct {
		Code string `xml:"code"`
		Text string `xml:"text"`
	} `xml:"Reason"`
}

func acknowledgementReason(body []byte) (string, string) {
	var ack acknowledgement
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&ack); err != nil || len(ack.Reasons) == 0 {
		return "", strings.TrimSpace(string(body[:min(len(body), 256)]))
	}
	texts := make([]string, 0, len(ack.Reasons))
	for _, r := range ack.Reasons {
		if strings.TrimSpace(r.Code) == reasonNoData {
			return reasonNoData, strings.TrimSpace(r.Text)
		}
		texts = append(texts, strings.TrimSpace(r.Text))
	}
	return strings.TrimSpace(ack.Reasons[0].Code), strings.Join(texts, "; ")
}
