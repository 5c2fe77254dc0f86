// Package postgrest provides the backing-store adapter for Supabase
// (PostgREST). It is the only package that talks to the wire: every
// collection store, plus the startup capability probe, lives here.
//
// PostgREST is non-transactional from this service's point of view: each
// request commits independently and there is no multi-statement atomicity.
// The reconciliation services are written to survive that.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgrest")

// Client wraps HTTP calls to the Supabase PostgREST API and holds the
// soft-delete capability map resolved once at startup.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger

	capsMu sync.RWMutex
	caps   map[domain.Collection]bool // collection -> supports deleted_at
}

// NewClient creates a PostgREST client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
		caps:           make(map[domain.Collection]bool),
	}
}

// SupportsSoftDelete reports the probed deletion capability for a collection.
// Unprobed collections default to hard deletion.
func (c *Client) SupportsSoftDelete(collection domain.Collection) bool {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.caps[collection]
}

func (c *Client) setCapability(collection domain.Collection, soft bool) {
	c.capsMu.Lock()
	defer c.capsMu.Unlock()
	c.caps[collection] = soft
}

// aliveFilter returns the query fragment excluding soft-deleted rows, or ""
// when the collection has no deleted_at column. Filtering on a missing
// column would be a PostgREST error, so the probe result gates it.
func (c *Client) aliveFilter(collection domain.Collection) string {
	if c.SupportsSoftDelete(collection) {
		return "&deleted_at=is.null"
	}
	return ""
}

func (c *Client) setHeaders(req *http.Request, prefer string) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
}

// doGet executes an authenticated read with retry + circuit breaker.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	var body []byte

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			b, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
			if err != nil {
				return err
			}
			body = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// doPost inserts a row and returns its representation. Writes are issued
// once: they are not idempotent, so retrying belongs to the caller.
func (c *Client) doPost(ctx context.Context, table domain.Collection, row any) ([]byte, error) {
	jsonBody, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}

	body, err := c.cb.Execute(func() (any, error) {
		return c.doRequest(ctx, http.MethodPost, string(table), jsonBody, "return=representation")
	})
	if err != nil {
		return nil, err
	}
	b, _ := body.([]byte)
	return b, nil
}

func (c *Client) doPatch(ctx context.Context, path string, updates map[string]any) error {
	jsonBody, err := json.Marshal(updates)
	if err != nil {
		return err
	}

	_, err = c.cb.Execute(func() (any, error) {
		return c.doRequest(ctx, http.MethodPatch, path, jsonBody, "return=minimal")
	})
	return err
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	_, err := c.cb.Execute(func() (any, error) {
		return c.doRequest(ctx, http.MethodDelete, path, nil, "")
	})
	return err
}

// doRequest executes one authenticated request against PostgREST.
func (c *Client) doRequest(ctx context.Context, method, path string, jsonBody []byte, prefer string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)

	var reader io.Reader
	if jsonBody != nil {
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		c.logger.Error("postgrest: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	c.setHeaders(req, prefer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("postgrest: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("postgrest: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("postgrest: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, &requestError{Status: resp.StatusCode, Body: string(body)}
	}

	c.logger.Debug("postgrest: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// requestError carries the PostgREST status and error body so the probe can
// distinguish a missing column from an outage.
type requestError struct {
	Status int
	Body   string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("postgrest returned status %d: %s", e.Status, e.Body)
}

// firstRow decodes a PostgREST representation array into dst's element and
// returns false when the result set is empty.
func firstRow[T any](body []byte) (*T, error) {
	if len(body) == 0 || string(body) == "[]" {
		return nil, nil
	}
	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
