// ABOUTME: Structured query call against the /v1/query endpoint
// ABOUTME: Returns expanded query, document sets, and the formatted response

package remote

import (
	"context"
	"fmt"
)

// QueryResult is the payload of a structured query.
type QueryResult struct {
	Query         string     `json:"query"`
	QueryExpanded string     `json:"query_expanded"`
	Documents     []Document `json:"documents"`
	SubDocuments  []Document `json:"sub_documents"`
	Formatted     string     `json:"formatted"`
	Response      string     `json:"response"`
}

// Query posts a structured query. Same envelope handling as
// QueryKnowledge, with the cheaper 120s timeout.
func (c *Client) Query(ctx context.Context, text, model string) (*QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	resp, err := c.newRequest(ctx, model).
		SetBody(newQueryRequest(text, model)).
		Post(c.endpoint("/v1/query"))
	if err != nil {
		return nil, fmt.Errorf("posting query: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	return decodeEntity[QueryResult](resp.Body())
}
