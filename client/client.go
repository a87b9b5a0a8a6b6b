// Package client holds the typed HTTP contracts to the remote task store,
// the assistant backend, and the context-analysis backend. Everything
// durable lives behind these clients; the board core owns no persistence.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"lotus-board/domain"
)

const defaultTimeout = 30 * time.Second

// Doer lets callers substitute the HTTP transport, mainly for tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type base struct {
	baseURL string
	bearer  string
	http    Doer
}

func newBase(baseURL, bearer string, doer Doer) base {
	if doer == nil {
		doer = &http.Client{Timeout: defaultTimeout}
	}
	return base{baseURL: baseURL, bearer: bearer, http: doer}
}

// do issues a JSON request and decodes the response into out when non-nil.
// Transport failures come back as *domain.ConnectivityError; non-2xx
// responses carry the status and a trimmed body.
func (b base) do(ctx context.Context, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+b.bearer)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return &domain.ConnectivityError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return &remoteError{op: method + " " + path, status: resp.StatusCode, body: string(msg)}
	}
	if out == nil {
		return nil
	}
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// remoteError is a non-2xx response from a collaborator.
type remoteError struct {
	op     string
	status int
	body   string
}

func (e *remoteError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("%s: status %d", e.op, e.status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.op, e.status, e.body)
}

// StatusCode exposes the HTTP status for callers that map errors to replies.
func (e *remoteError) StatusCode() int { return e.status }
