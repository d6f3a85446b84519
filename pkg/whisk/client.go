package whisk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Response is the structured result of a successful transport call.
type Response struct {
	Body    []byte
	Code    int
	Headers http.Header
	Message string
	Retries int
}

// Transport performs one poll request. Implementations resolve to either a
// structured response or an error detail; they never panic.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Client is the default net/http transport.
type Client struct {
	http *http.Client
}

// NewClient builds a transport with the given timeout (zero means the
// default of 30s).
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Do issues the request and reads the full body. A non-2xx status is still a
// transport success: the coordinator sees the code and the body.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.FullURL(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.SetBasicAuth(req.Username, req.Password)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		Body:    body,
		Code:    resp.StatusCode,
		Headers: resp.Header,
		Message: resp.Status,
	}, nil
}

// Trace renders an error's unwrap chain, outermost first, one frame per
// line. Stands in for a backtrace on failure events.
func Trace(err error) []string {
	var trace []string
	for err != nil {
		trace = append(trace, err.Error())
		err = errors.Unwrap(err)
	}
	return trace
}

// TraceString joins Trace with newlines.
func TraceString(err error) string {
	return strings.Join(Trace(err), "\n")
}
