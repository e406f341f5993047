// ABOUTME: Model and agent catalog listing against /v1/models and /v1/agents
// ABOUTME: Normalizes backend catalog rows into client-side entries

package remote

import (
	"context"
	"fmt"
)

// Model is a language model entry as exposed to the rest of the client.
type Model struct {
	Name         string
	Provider     string
	ImageSupport bool
}

// Agent is an agent catalog entry as the backend ships it.
type Agent struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Details      string `json:"details"`
	ImageSupport bool   `json:"imageSupport"`
}

// modelRow is the backend's model record. Only the name survives
// normalization; the rest of the row is backend bookkeeping.
type modelRow struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Model string `json:"model"`
}

// ListModels fetches the model catalog. The response is either an
// enveloped list or a single bare entity; either way the rows are
// normalized to Model entries.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	resp, err := c.newRequest(ctx, "").Get(c.endpoint("/v1/models"))
	if err != nil {
		return nil, fmt.Errorf("fetching models: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	rows, err := decodeList[modelRow](resp.Body())
	if err != nil {
		return nil, err
	}

	models := make([]Model, len(rows))
	for i, r := range rows {
		models[i] = Model{
			Name:         r.Name,
			Provider:     "ollama",
			ImageSupport: false,
		}
	}
	return models, nil
}

// ListAgents fetches the agent catalog with the same list-or-single
// decoding strategy.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	resp, err := c.newRequest(ctx, "").Get(c.endpoint("/v1/agents"))
	if err != nil {
		return nil, fmt.Errorf("fetching agents: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	return decodeList[Agent](resp.Body())
}
