// ABOUTME: Tests for endpoint resolution and the settings fallback chain
// ABOUTME: Covers scheme coercion, override precedence, and token handling

package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeOverrides implements Overrides for tests.
type fakeOverrides struct {
	url   string
	token string
}

func (f *fakeOverrides) Override() (string, string) {
	return f.url, f.token
}

func TestNewClient_DefaultEndpoint(t *testing.T) {
	c := NewClient(Options{})
	assert.Equal(t, defaultBaseURL, c.BaseURL())
}

func TestNewClient_ExplicitURLWins(t *testing.T) {
	c := NewClient(Options{
		URL:       "http://example.com:9000",
		Overrides: &fakeOverrides{url: "http://stored:1234"},
	})
	assert.Equal(t, "http://example.com:9000", c.BaseURL())
}

func TestNewClient_StoredOverrideBeatsDefault(t *testing.T) {
	c := NewClient(Options{
		Overrides: &fakeOverrides{url: "http://stored:1234"},
	})
	assert.Equal(t, "http://stored:1234", c.BaseURL())
}

func TestUpdateEndpoint_CoercesMissingScheme(t *testing.T) {
	c := NewClient(Options{})
	c.UpdateEndpoint("192.168.1.42:11434", "")
	assert.Equal(t, "http://192.168.1.42:11434", c.BaseURL())
}

func TestUpdateEndpoint_KeepsHTTPSScheme(t *testing.T) {
	c := NewClient(Options{})
	c.UpdateEndpoint("https://secure.example.com", "")
	assert.Equal(t, "https://secure.example.com", c.BaseURL())
}

func TestUpdateEndpoint_TrimsTrailingSlash(t *testing.T) {
	c := NewClient(Options{})
	c.UpdateEndpoint("http://example.com/", "")
	assert.Equal(t, "http://example.com", c.BaseURL())
}

func TestUpdateEndpoint_EmptyArgsFallThrough(t *testing.T) {
	ov := &fakeOverrides{url: "stored.example.com", token: "stored-token"}
	c := NewClient(Options{Overrides: ov})
	assert.Equal(t, "http://stored.example.com", c.BaseURL())

	// Clearing the override drops resolution back to the default
	ov.url = ""
	c.UpdateEndpoint("", "")
	assert.Equal(t, defaultBaseURL, c.BaseURL())
}

func TestUpdateEndpoint_TokenPrecedence(t *testing.T) {
	ov := &fakeOverrides{token: "stored-token"}
	c := NewClient(Options{Overrides: ov})

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	assert.Equal(t, "stored-token", token)

	// An explicit token beats the stored one
	c.UpdateEndpoint("", "explicit-token")
	c.mu.RLock()
	token = c.token
	c.mu.RUnlock()
	assert.Equal(t, "explicit-token", token)

	// Empty argument with no stored token keeps the current one
	ov.token = ""
	c.UpdateEndpoint("", "")
	c.mu.RLock()
	token = c.token
	c.mu.RUnlock()
	assert.Equal(t, "explicit-token", token)
}
