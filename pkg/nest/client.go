// Package nest polls the Nest mobile API for the user document that carries
// the remote temperature sensors.
package nest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/nimdanitro/hub-sensors-go/pkg/metrics"
	"github.com/nimdanitro/hub-sensors-go/pkg/throttle"
)

const DefaultBaseURL = "https://home.nest.com"

// Client owns a cached session and the last good snapshot. Network refreshes
// go through a per-client throttle.
type Client struct {
	client   *http.Client
	log      *zap.Logger
	metrics  *metrics.Collector
	throttle *throttle.Throttle
	now      func() time.Time

	baseURL  string
	username string
	password string

	mu       sync.RWMutex
	session  *Session
	snapshot Snapshot
}

type Option func(c *Client) error

func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		log:     zap.L(),
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		now:     time.Now,
		baseURL: DefaultBaseURL,
	}

	// apply the options
	for _, o := range opts {
		err := o(c)
		if err != nil {
			return nil, err
		}
	}

	if c.username == "" || c.password == "" {
		return nil, errors.New("nest: username and password are required")
	}
	if c.throttle == nil {
		c.throttle = throttle.New(throttle.DefaultInterval, throttle.WithClock(c.now))
	}
	c.log.Debug("nest client ready", zap.Duration("throttle", c.throttle.Interval()))
	return c, nil
}

func WithCredentials(username, password string) Option {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) error {
		c.log = l
		return nil
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) error {
		c.client = h
		return nil
	}
}

func WithBaseURL(u string) Option {
	return func(c *Client) error {
		if u == "" {
			return errors.New("nest: empty base url")
		}
		c.baseURL = strings.TrimSuffix(u, "/")
		return nil
	}
}

func WithThrottle(t *throttle.Throttle) Option {
	return func(c *Client) error {
		c.throttle = t
		return nil
	}
}

// WithClock replaces time.Now for session expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) error {
		c.now = now
		return nil
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// Snapshot returns the last successfully fetched document, or nil.
func (c *Client) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Session returns the cached session, or nil before the first login.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// RefreshSnapshot updates the snapshot at most once per throttle window.
// Failures are logged and leave the previous snapshot in place; they never
// reach the caller.
func (c *Client) RefreshSnapshot(ctx context.Context) {
	ran := c.throttle.Do(ctx, func(ctx context.Context) {
		if err := c.UpdateNow(ctx); err != nil {
			c.logFailure(err)
		}
	})
	c.metrics.Refresh("nest", ran)
}

func (c *Client) logFailure(err error) {
	var authErr *AuthError
	var fetchErr *FetchError
	switch {
	case errors.As(err, &authErr):
		c.log.Error("nest login failed, giving up", zap.Int("status", authErr.StatusCode))
	case errors.As(err, &fetchErr):
		c.log.Error("nest fetch failed, giving up", zap.Int("status", fetchErr.StatusCode))
	default:
		c.log.Error("nest refresh failed", zap.Error(err))
	}
}

// UpdateNow logs in when the session is missing or expired, then fetches the
// user document. On any error the snapshot is left unchanged.
func (c *Client) UpdateNow(ctx context.Context) error {
	session := c.Session()
	if session.Expired(c.now()) {
		s, err := c.login(ctx)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.session = s
		c.mu.Unlock()
		if s.Expired(c.now()) {
			return ErrSessionExpired
		}
		session = s
	}

	snap, err := c.fetch(ctx, session)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()
	return nil
}

func (c *Client) login(ctx context.Context) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	form := url.Values{
		"username": {c.username},
		"password": {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/user/login", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.log.Debug("logging in to nest")
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.Failure("nest", "login", "")
		return nil, fmt.Errorf("nest login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.Failure("nest", "login", strconv.Itoa(resp.StatusCode))
		return nil, &AuthError{StatusCode: resp.StatusCode}
	}

	var data loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		c.metrics.Failure("nest", "decode", "")
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	s, err := data.session()
	if err != nil {
		c.metrics.Failure("nest", "decode", "")
		return nil, err
	}

	c.metrics.Login("nest")
	c.log.Info("logged in to nest", zap.String("userId", s.UserID), zap.Time("expires", s.ExpiresAt))
	return s, nil
}

func (c *Client) fetch(ctx context.Context, s *Session) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	u := strings.TrimSuffix(s.TransportURL, "/") + "/v3/mobile/user." + s.UserID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("X-nl-user-id", s.UserID)
	req.Header.Set("Authorization", "Basic "+s.AccessToken)

	c.log.Debug("fetching nest user document", zap.String("userId", s.UserID))
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.Failure("nest", "fetch", "")
		return nil, fmt.Errorf("nest fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.Failure("nest", "fetch", strconv.Itoa(resp.StatusCode))
		return nil, &FetchError{StatusCode: resp.StatusCode}
	}

	snap, err := decodeSnapshot(resp.Body)
	if err != nil {
		c.metrics.Failure("nest", "decode", "")
		return nil, err
	}
	return snap, nil
}
