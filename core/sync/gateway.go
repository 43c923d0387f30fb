package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
)

var (
	// ErrUnavailable covers network failures, timeouts and non-2xx replies.
	ErrUnavailable = errors.New("endpoint unavailable")
	// ErrBadPayload covers replies that are not JSON or have no
	// recognizable collection in them.
	ErrBadPayload = errors.New("malformed endpoint response")
)

type (
	// Response is the endpoint's reply envelope to a pushed action.
	Response struct {
		Status  string `json:"status"`
		Message string `json:"message,omitempty"`
		Token   string `json:"token,omitempty"`
	}

	// Gateway is the one remote the client talks to: fetch everything,
	// or send one action envelope.
	Gateway interface {
		FetchAll(ctx context.Context) (classroom.State, error)
		Send(ctx context.Context, payload []byte) (Response, error)
	}

	// HTTPGateway talks to the real endpoint over HTTP with JSON bodies.
	HTTPGateway struct {
		client *http.Client
		url    string
	}
)

var _ Gateway = (*HTTPGateway)(nil)

func NewHTTPGateway(conf core.ClientConfig) *HTTPGateway {
	return &HTTPGateway{
		client: &http.Client{Timeout: conf.RequestTimeout},
		url:    conf.EndpointURL,
	}
}

// FetchAll requests the full data set. The endpoint replies with either the
// flat data object itself or {"data": <flat data object>}; anything without
// at least one recognizable collection key is ErrBadPayload.
func (gw *HTTPGateway) FetchAll(ctx context.Context) (classroom.State, error) {
	var state classroom.State

	url := fmt.Sprintf("%s?action=getData&t=%d", gw.url, classroom.NowFunc().UnixMilli())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return state, errors.Wrap(err, "building fetch request")
	}
	res, err := gw.client.Do(req)
	if err != nil {
		return state, errors.Wrapf(ErrUnavailable, "fetch: %v", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return state, errors.Wrapf(ErrUnavailable, "fetch: HTTP %d", res.StatusCode)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return state, errors.Wrapf(ErrUnavailable, "fetch: reading body: %v", err)
	}

	root, err := dataObject(body)
	if err != nil {
		return state, err
	}
	if err := json.Unmarshal(root, &state); err != nil {
		return state, errors.Wrapf(ErrBadPayload, "fetch: %v", err)
	}
	return state, nil
}

// Send posts one action envelope and decodes the reply.
func (gw *HTTPGateway) Send(ctx context.Context, payload []byte) (Response, error) {
	var resp Response

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gw.url, bytes.NewReader(payload))
	if err != nil {
		return resp, errors.Wrap(err, "building send request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := gw.client.Do(req)
	if err != nil {
		return resp, errors.Wrapf(ErrUnavailable, "send: %v", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return resp, errors.Wrapf(ErrUnavailable, "send: HTTP %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, errors.Wrapf(ErrBadPayload, "send: %v", err)
	}
	return resp, nil
}

// collection keys that make a pull payload recognizable
var collectionKeys = []string{
	"subjects", "classes", "students", "tasks", "scores",
	"attendance", "submissions", "materials", "schedules", "returns",
}

// dataObject unwraps an optional {"data": ...} envelope and verifies the
// flat object carries at least one known collection.
func dataObject(body []byte) (json.RawMessage, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, errors.Wrapf(ErrBadPayload, "fetch: %v", err)
	}

	raw := json.RawMessage(body)
	if data, ok := root["data"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, errors.Wrapf(ErrBadPayload, "fetch: data envelope: %v", err)
		}
		root, raw = inner, data
	}
	for _, k := range collectionKeys {
		if _, ok := root[k]; ok {
			return raw, nil
		}
	}
	return nil, errors.Wrap(ErrBadPayload, "fetch: no recognizable collection")
}
