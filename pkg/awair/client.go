// Package awair fetches air-quality readings from the Awair cloud and maps
// them onto sensor entities.
package awair

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nimdanitro/hub-sensors-go/pkg/metrics"
)

const DefaultBaseURL = "https://developer-apis.awair.is"

type Fetcher interface {
	Devices(ctx context.Context) ([]Device, error)
	AirData(ctx context.Context, d Device) (ReadingSet, error)
}

type Client struct {
	client  *http.Client
	limit   *rate.Limiter
	log     *zap.Logger
	metrics *metrics.Collector
	baseURL string
	token   string
}

type Option func(c *Client) error

func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		log:     zap.L(),
		limit:   rate.NewLimiter(rate.Every(5*time.Second), 4),
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		baseURL: DefaultBaseURL,
	}

	// apply the options
	for _, o := range opts {
		err := o(c)
		if err != nil {
			return nil, err
		}
	}

	if c.token == "" {
		return nil, fmt.Errorf("awair: access token is required")
	}
	return c, nil
}

func WithAccessToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) error {
		c.log = l
		return nil
	}
}

func WithBaseURL(u string) Option {
	return func(c *Client) error {
		if u == "" {
			return fmt.Errorf("awair: empty base url")
		}
		c.baseURL = u
		return nil
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) error {
		c.client = h
		return nil
	}
}

func WithRateLimit(l *rate.Limiter) Option {
	return func(c *Client) error {
		c.limit = l
		return nil
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	// apply the ratelimit
	if err := c.limit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("await rate limit: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.Failure("awair", "fetch", "")
		return nil, fmt.Errorf("awair api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.Failure("awair", "fetch", strconv.Itoa(resp.StatusCode))
		return nil, fmt.Errorf("awair api %s: status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Devices lists the devices on the account.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	c.log.Debug("fetching awair devices")
	body, err := c.get(ctx, "/v1/users/self/devices")
	if err != nil {
		return nil, err
	}

	var resp devicesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.metrics.Failure("awair", "decode", "")
		return nil, fmt.Errorf("decode devices: %w", err)
	}
	return resp.Devices, nil
}

// AirData fetches the latest readings of one device. An offline device
// returns an empty set and no error.
func (c *Client) AirData(ctx context.Context, d Device) (ReadingSet, error) {
	c.log.Debug("fetching air data", zap.String("device", d.UUID()))
	path := fmt.Sprintf("/v1/users/self/devices/%s/%d/air-data/latest?fahrenheit=false", d.Type, d.ID)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	rs, err := ParseAirData(body)
	if err != nil {
		c.metrics.Failure("awair", "decode", "")
		return nil, err
	}
	return rs, nil
}
