package theme

import (
	"context"
	"testing"

	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferences_Toggle(t *testing.T) {
	ctx := context.Background()
	p := New(engine.NewMemStore(nil, nil))

	dark, err := p.IsDark(ctx)
	require.NoError(t, err)
	assert.False(t, dark)

	dark, err = p.Toggle(ctx)
	require.NoError(t, err)
	assert.True(t, dark)

	dark, err = p.IsDark(ctx)
	require.NoError(t, err)
	assert.True(t, dark)

	dark, err = p.Toggle(ctx)
	require.NoError(t, err)
	assert.False(t, dark)
}
