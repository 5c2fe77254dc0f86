package postgrest

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
)

// undefinedColumn is the Postgres error code PostgREST relays when a query
// selects a column that does not exist.
const undefinedColumn = "42703"

// ProbeSoftDelete checks whether a collection carries a deleted_at column
// and caches the answer on the client, where aliveFilter consults it. One
// introspective query, no retries: a failed probe is answered with the
// conservative hard-delete strategy and startup continues.
func (c *Client) ProbeSoftDelete(ctx context.Context, collection domain.Collection) (bool, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ProbeSoftDelete")
	defer span.End()

	path := string(collection) + "?select=deleted_at&limit=1"
	_, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
	if err == nil {
		c.setCapability(collection, true)
		return true, nil
	}

	c.setCapability(collection, false)
	var reqErr *requestError
	if errors.As(err, &reqErr) && reqErr.Status == http.StatusBadRequest && strings.Contains(reqErr.Body, undefinedColumn) {
		// Schema genuinely lacks the column. Not an error condition.
		return false, nil
	}
	return false, err
}
