// ABOUTME: Reachability probe against the backend /status endpoint
// ABOUTME: Converts every failure mode into a plain false, never an error

package remote

import "context"

// Reachable probes the backend status endpoint. Any network error or
// non-2xx status yields false; it never returns an error.
func (c *Client) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := c.http.R().SetContext(ctx).Get(c.endpoint("/status"))
	if err != nil {
		return false
	}
	return resp.IsSuccess()
}
