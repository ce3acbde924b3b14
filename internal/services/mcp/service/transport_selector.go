package service

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// TransportDecision is the wire protocol chosen for one request.
type TransportDecision int

const (
	// Synchronous answers with one buffered response.
	Synchronous TransportDecision = iota
	// ServerPush answers over a long-lived event stream.
	ServerPush
)

// String returns the label used in logs and metrics.
func (d TransportDecision) String() string {
	switch d {
	case ServerPush:
		return "server-push"
	default:
		return "synchronous"
	}
}

const (
	transportTypeParam      = "transportType"
	transportTypeStreamable = "streamable-http"
)

// TransportSelector classifies endpoint requests by transport.
type TransportSelector struct {
	Endpoint     string
	MaxBodyBytes int64
}

// Classify returns ServerPush when a request to the endpoint asks for
// streaming, either with a JSON body carrying "stream": true or with the
// transportType=streamable-http query parameter. Anything else, including an
// unreadable or malformed body, is Synchronous. The request body stays
// readable for the downstream handler.
func (s TransportSelector) Classify(r *http.Request) TransportDecision {
	if r == nil || r.URL == nil || r.URL.Path != s.Endpoint {
		return Synchronous
	}
	if r.URL.Query().Get(transportTypeParam) == transportTypeStreamable {
		return ServerPush
	}
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return Synchronous
	}
	body, err := peekBody(r, s.MaxBodyBytes)
	if err != nil {
		return Synchronous
	}
	var probe struct {
		Stream *bool `json:"stream"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return Synchronous
	}
	if probe.Stream != nil && *probe.Stream {
		return ServerPush
	}
	return Synchronous
}

// peekBody reads the request body into memory and replaces it with an
// equivalent reader, so later readers observe the original payload.
func peekBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, io.EOF
	}
	reader := io.Reader(r.Body)
	if limit > 0 {
		reader = io.LimitReader(r.Body, limit+1)
	}
	body, err := io.ReadAll(reader)
	rest := r.Body
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(body), rest), Closer: rest}
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return body, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
