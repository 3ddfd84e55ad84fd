package amis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"phieu/internal/config"
	"phieu/internal/logging"
)

const (
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryAttempts  = 3
)

// Credentials carries the AMIS login identity. Opaque to the pipeline; only
// this package interprets it.
type Credentials struct {
	Username string
	Password string
}

// Client talks to the AMIS web endpoints. One client serves one pipeline
// run; the Session produced by Login carries all per-run state.
type Client struct {
	cfg       config.AMIS
	transport http.RoundTripper
	logger    *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithTransport overrides the HTTP transport (useful for tests).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.transport = rt
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "amis")
		}
	}
}

// WithRetryBackoff overrides the download retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs an AMIS client from configuration.
func NewClient(cfg config.AMIS, opts ...Option) *Client {
	client := &Client{
		cfg:              cfg,
		logger:           logging.NewNop(),
		retryMaxAttempts: cfg.DownloadAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	if client.retryMaxAttempts <= 0 {
		client.retryMaxAttempts = defaultRetryAttempts
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) httpClient(sess *Session) *http.Client {
	timeout := defaultHTTPTimeout
	if c.cfg.RequestTimeout > 0 {
		timeout = time.Duration(c.cfg.RequestTimeout) * time.Second
	}
	client := &http.Client{Timeout: timeout}
	if sess != nil {
		client.Jar = sess.jar
	}
	if c.transport != nil {
		client.Transport = c.transport
	}
	return client
}

// Login authenticates against AMIS and returns a fresh Session. Rejected
// credentials and unreachable endpoints both surface as *AuthError.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Session, error) {
	if strings.TrimSpace(creds.Username) == "" || strings.TrimSpace(creds.Password) == "" {
		return nil, &AuthError{Reason: "username and password required"}
	}

	sess, err := newSession()
	if err != nil {
		return nil, &AuthError{Reason: "create session", Err: err}
	}

	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)

	endpoint := c.cfg.BaseURL + c.cfg.LoginPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Reason: "build login request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient(sess).Do(req)
	if err != nil {
		return nil, &AuthError{Reason: "amis unreachable", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusNoContent:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Reason: "credentials rejected"}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &AuthError{Reason: "unexpected login response", Err: &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}}
	}

	c.logger.Info("logged in", logging.String("user", creds.Username))
	return sess, nil
}

// SearchRecord resolves a record identifier into a RecordHandle. It returns
// *NotFoundError when nothing matches and ErrSessionExpired when the server
// stops honoring the session.
func (c *Client) SearchRecord(ctx context.Context, sess *Session, recordID string) (*RecordHandle, error) {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return nil, errors.New("amis search: record id required")
	}
	if !sess.Valid() {
		return nil, ErrSessionExpired
	}

	endpoint := fmt.Sprintf("%s%s?q=%s", c.cfg.BaseURL, c.cfg.SearchPath, url.QueryEscape(recordID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("amis search: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient(sess).Do(req)
	if err != nil {
		return nil, fmt.Errorf("amis search: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		sess.expire()
		return nil, ErrSessionExpired
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NotFoundError{RecordID: recordID}
	case resp.StatusCode >= http.StatusMultipleChoices:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("amis search: %w", &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("amis search: decode response: %w", err)
	}

	record, ok := matchRecord(parsed.Records, recordID)
	if !ok {
		return nil, &NotFoundError{RecordID: recordID}
	}

	handle := &RecordHandle{
		RecordID:       recordID,
		Template:       c.selectTemplate(record.Templates),
		PropertyPhotos: toFileRefs(record.Images["property"]),
		ListingPhotos:  toFileRefs(record.Images["listing"]),
		TitleDeedScans: toFileRefs(record.Images["title_deed"]),
	}
	c.logger.Info("record resolved",
		logging.String(logging.FieldRecordID, recordID),
		logging.Bool("has_template", !handle.Template.IsZero()),
		logging.Int("property_photos", len(handle.PropertyPhotos)),
		logging.Int("listing_photos", len(handle.ListingPhotos)),
		logging.Int("title_deed_scans", len(handle.TitleDeedScans)),
	)
	return handle, nil
}

func matchRecord(records []searchRecord, recordID string) (searchRecord, bool) {
	for _, record := range records {
		if strings.EqualFold(strings.TrimSpace(record.ID), recordID) {
			return record, true
		}
	}
	return searchRecord{}, false
}

// selectTemplate picks the configured print template by name, falling back
// to the first offered template when the name does not match.
func (c *Client) selectTemplate(templates []searchFile) FileRef {
	for _, tpl := range templates {
		if strings.EqualFold(strings.TrimSpace(tpl.Name), c.cfg.TemplateName) {
			return FileRef{URL: tpl.URL, Name: tpl.Name}
		}
	}
	if len(templates) > 0 {
		return FileRef{URL: templates[0].URL, Name: templates[0].Name}
	}
	return FileRef{}
}

func toFileRefs(files []searchFile) []FileRef {
	if len(files) == 0 {
		return nil
	}
	refs := make([]FileRef, 0, len(files))
	for _, f := range files {
		if strings.TrimSpace(f.URL) == "" {
			continue
		}
		refs = append(refs, FileRef{URL: f.URL, Name: f.Name})
	}
	return refs
}

// DownloadFile fetches one file, retrying transient transport failures with
// exponential backoff. Exhausting the budget surfaces a *DownloadError.
func (c *Client) DownloadFile(ctx context.Context, sess *Session, ref FileRef) ([]byte, error) {
	if ref.IsZero() {
		return nil, errors.New("amis download: empty file reference")
	}
	if !sess.Valid() {
		return nil, ErrSessionExpired
	}

	target := ref.URL
	if strings.HasPrefix(target, "/") {
		target = c.cfg.BaseURL + target
	}

	attempts := c.retryMaxAttempts
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		data, err := c.downloadOnce(ctx, sess, target)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, ErrSessionExpired) {
			return nil, err
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		c.logger.Debug("download retry",
			logging.String("url", target),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, &DownloadError{URL: target, Attempts: attempts, Err: lastErr}
}

func (c *Client) downloadOnce(ctx context.Context, sess *Session, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient(sess).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		sess.expire()
		return nil, ErrSessionExpired
	case resp.StatusCode >= http.StatusMultipleChoices:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				delay := statusErr.RetryAfter
				if maxDelay := c.retryMaxDelay; maxDelay > 0 && delay > maxDelay {
					delay = maxDelay
				}
				return delay, true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// Connection resets and refusals are worth a retry; everything the
		// server actively rejected is not.
		return c.backoffDelay(attempt), true
	}

	return 0, false
}

// parseRetryAfter accepts the delay-seconds form; HTTP-date values are
// ignored and fall back to backoff.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := c.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}

	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
