// Package whisk builds and issues activation-log requests against an
// OpenWhisk-compatible HTTP API.
package whisk

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Connection carries the immutable platform connection parameters.
type Connection struct {
	Host      string
	Namespace string
	Principal string
	Secret    string
}

// Request is the descriptor for one activation-log pull. It is a plain value
// so failure events can replay exactly what was asked.
type Request struct {
	Method   string
	URL      string // without query
	Query    url.Values
	Username string
	Password string
}

// FullURL is the request target including the encoded query.
func (r Request) FullURL() string {
	if len(r.Query) == 0 {
		return r.URL
	}
	return r.URL + "?" + r.Query.Encode()
}

// Flatten renders the descriptor as one flat string-keyed mapping, so
// logging and indexing see a uniform shape regardless of request complexity.
// The secret is deliberately left out.
func (r Request) Flatten() map[string]string {
	flat := map[string]string{
		"method":   r.Method,
		"url":      r.FullURL(),
		"username": r.Username,
	}
	for k, vs := range r.Query {
		flat["query."+k] = strings.Join(vs, ",")
	}
	return flat
}

// BuildRequest derives the poll request for the given watermark. Pure and
// deterministic; malformed connection values are a configuration-time error
// caught before any polling starts.
func BuildRequest(conn Connection, since int64) Request {
	target := fmt.Sprintf("%s/api/v1/namespaces/%s/activations",
		strings.TrimRight(conn.Host, "/"), url.PathEscape(conn.Namespace))

	q := url.Values{}
	q.Set("since", strconv.FormatInt(since, 10))
	q.Set("limit", "0") // no server-side page cap

	return Request{
		Method:   "GET",
		URL:      target,
		Query:    q,
		Username: conn.Principal,
		Password: conn.Secret,
	}
}
