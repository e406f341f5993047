// ABOUTME: Knowledge retrieval call against the /v1/knowledge endpoint
// ABOUTME: Returns the synthesized answer plus the retrieved documents

package remote

import (
	"context"
	"fmt"
)

// Document is a retrieved knowledge unit as the backend ships it.
type Document struct {
	ID        string            `json:"id"`
	Distance  *float64          `json:"distance,omitempty"`
	Document  string            `json:"document"`
	Metadata  map[string]string `json:"metadata"`
	Formatted *string           `json:"formatted,omitempty"`
}

// KnowledgeResult is the payload of a knowledge query: a synthesized
// answer and the documents it was grounded on.
type KnowledgeResult struct {
	Answer    string     `json:"answer"`
	Documents []Document `json:"data"`
}

// QueryKnowledge posts a knowledge query. The model name rides both in
// the JSON body (defaulting to "default") and, when set, in a `model`
// header. Timeout is the knowledge timeout (300s by default).
func (c *Client) QueryKnowledge(ctx context.Context, text, model string) (*KnowledgeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.knowledgeTimeout)
	defer cancel()

	resp, err := c.newRequest(ctx, model).
		SetBody(newQueryRequest(text, model)).
		Post(c.endpoint("/v1/knowledge"))
	if err != nil {
		return nil, fmt.Errorf("posting knowledge query: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	result, err := decodeEntity[KnowledgeResult](resp.Body())
	if err != nil {
		return nil, err
	}

	c.logger.Debug("knowledge query resolved",
		"model", model,
		"documents", len(result.Documents))
	return result, nil
}
