// ABOUTME: Tests for the in-memory model catalog
// ABOUTME: Covers refresh, selection fallback, and image support exposure

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raikolabs/chatsync/internal/remote"
)

// fakeModelLister is a scriptable ModelLister.
type fakeModelLister struct {
	models []remote.Model
	err    error
}

func (f *fakeModelLister) ListModels(ctx context.Context) ([]remote.Model, error) {
	return f.models, f.err
}

func TestLoadModels(t *testing.T) {
	lister := &fakeModelLister{models: []remote.Model{
		{Name: "llama3", Provider: "ollama"},
		{Name: "llava", Provider: "ollama", ImageSupport: true},
	}}
	cat := NewModelStore(lister, nil)

	require.NoError(t, cat.LoadModels(context.Background()))
	assert.Len(t, cat.Models(), 2)
	require.NotNil(t, cat.Selected())
	assert.Equal(t, "llava", cat.Selected().Name)
}

func TestLoadModels_Error(t *testing.T) {
	cat := NewModelStore(&fakeModelLister{err: errors.New("unreachable")}, nil)

	require.Error(t, cat.LoadModels(context.Background()))
	assert.Empty(t, cat.Models())
	assert.Nil(t, cat.Selected())
}

func TestSetModel_FallsBackToLastEntry(t *testing.T) {
	lister := &fakeModelLister{models: []remote.Model{
		{Name: "first"}, {Name: "last"},
	}}
	cat := NewModelStore(lister, nil)
	require.NoError(t, cat.LoadModels(context.Background()))

	cat.SetModel("first")
	assert.Equal(t, "first", cat.Selected().Name)

	cat.SetModel("no-such-model")
	assert.Equal(t, "last", cat.Selected().Name)
}

func TestSupportsImages(t *testing.T) {
	lister := &fakeModelLister{models: []remote.Model{
		{Name: "text-only"},
		{Name: "multimodal", ImageSupport: true},
	}}
	cat := NewModelStore(lister, nil)

	assert.False(t, cat.SupportsImages(), "no selection means no image support")

	require.NoError(t, cat.LoadModels(context.Background()))
	cat.SetModel("text-only")
	assert.False(t, cat.SupportsImages())

	cat.SetModel("multimodal")
	assert.True(t, cat.SupportsImages())
}
