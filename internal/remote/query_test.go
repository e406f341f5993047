// ABOUTME: Tests for the structured query call
// ABOUTME: Covers field mapping and the enveloped/bare decode equivalence

package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const queryPayload = `{
	"query": "what is a quark",
	"query_expanded": "what is a quark elementary particle",
	"documents": [{"id": "d1", "document": "quark table", "metadata": {}}],
	"sub_documents": [{"id": "s1", "document": "up quark", "metadata": {"parent": "d1"}}],
	"formatted": "<p>quarks</p>",
	"response": "A quark is an elementary particle."
}`

func TestQuery_EnvelopedAndBareAreEquivalent(t *testing.T) {
	bodies := map[string]string{
		"enveloped": `{"status": 200, "data": ` + queryPayload + `}`,
		"bare":      queryPayload,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/query", r.URL.Path)
				assert.Equal(t, http.MethodPost, r.Method)
				w.Write([]byte(body))
			}))
			defer srv.Close()

			c := NewClient(Options{URL: srv.URL})
			result, err := c.Query(context.Background(), "what is a quark", "rag")
			require.NoError(t, err)

			assert.Equal(t, "what is a quark", result.Query)
			assert.Equal(t, "what is a quark elementary particle", result.QueryExpanded)
			assert.Equal(t, "A quark is an elementary particle.", result.Response)
			assert.Equal(t, "<p>quarks</p>", result.Formatted)
			require.Len(t, result.Documents, 1)
			require.Len(t, result.SubDocuments, 1)
			assert.Equal(t, "d1", result.SubDocuments[0].Metadata["parent"])
		})
	}
}

func TestQuery_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Options{URL: srv.URL})
	_, err := c.Query(context.Background(), "hello", "rag")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadResponse)
}
