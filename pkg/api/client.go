package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MiteyIronPaw/selfoss/pkg/lib"
	"github.com/MiteyIronPaw/selfoss/pkg/sources"
)

// StoreClient is a sources.Store backed by a remote configuration API,
// for deployments where source records live in a host application rather
// than a local database. A 401 or 403 from the remote means the session
// is no longer valid and surfaces as sources.ErrAuthExpired so the fetch
// orchestrator stops instead of failing every source individually.
type StoreClient struct {
	baseURL string
	client  *http.Client
	// authHeader is sent as the Authorization value on every request,
	// e.g. "Bearer <key>". Empty means unauthenticated.
	authHeader string
}

var _ sources.Store = (*StoreClient)(nil)

func NewStoreClient(baseURL, authHeader string) *StoreClient {
	return &StoreClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		client:     lib.DefaultHTTPClient,
		authHeader: authHeader,
	}
}

func (c *StoreClient) List(ctx context.Context) ([]*sources.Source, error) {
	var out []*sources.Source
	if err := c.do(ctx, http.MethodGet, "/sources", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StoreClient) Upsert(ctx context.Context, source *sources.Source) error {
	body, err := json.Marshal(source)
	if err != nil {
		return fmt.Errorf("serialize source: %w", err)
	}
	return c.do(ctx, http.MethodPut, "/sources/"+source.ID, body, nil)
}

func (c *StoreClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sources/"+id, nil, nil)
}

func (c *StoreClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", lib.UserAgentString)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, sources.ErrAuthExpired)
	case resp.StatusCode >= 300:
		truncated, _ := lib.LimitStringLength(string(respBody), 256)
		return fmt.Errorf("unexpected status code %d from %s %s, response: %s",
			resp.StatusCode, method, path, truncated)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
