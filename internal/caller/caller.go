// Package caller builds and sends authenticated JSON requests to the CRM.
package caller

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client is a HTTP client
type Client struct {
	BaseURL    *url.URL
	HTTPClient *http.Client
	APIKey     string
}

// Options configure New.
type Options struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	RetryMax int
	Logger   *zap.Logger
}

// New returns a Client backed by a retryablehttp transport.
// Non-2xx answers are handed back untouched so callers can read the error body.
func New(o Options) (*Client, error) {

	if o.BaseURL == "" {
		return nil, eris.New("missing base URL")
	}
	base, err := url.Parse(strings.TrimRight(o.BaseURL, "/") + "/")
	if err != nil {
		return nil, eris.Wrap(err, "could not parse base URL")
	}

	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = o.RetryMax
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{log.Sugar()}
	rc.HTTPClient.Timeout = o.Timeout

	return &Client{
		BaseURL:    base,
		HTTPClient: rc.StandardClient(),
		APIKey:     o.APIKey,
	}, nil
}

// NewRequest creates a HTTP request relative to BaseURL
func (c *Client) NewRequest(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Request, error) {

	u := c.BaseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", c.APIKey)

	return req, nil
}

// Do makes a HTTP request
func (c *Client) Do(req *http.Request) (*http.Response, error) {

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, err
}

// leveledLogger lets retryablehttp log through zap
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
