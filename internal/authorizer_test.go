package internal_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-player-ranking/internal"
)

func TestMemoryAuthorizer(t *testing.T) {
	ctx := context.Background()
	auth := internal.NewMemoryAuthorizer()

	require.NoError(t, auth.Grant(ctx, "p1", "b"))
	require.NoError(t, auth.Grant(ctx, "p1", "a"))
	require.NoError(t, auth.Grant(ctx, "p1", "a")) // 冪等
	require.NoError(t, auth.Grant(ctx, "p2", "c"))

	caps, err := auth.Capabilities(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, caps)

	require.NoError(t, auth.Revoke(ctx, "p1", "b"))
	require.NoError(t, auth.Revoke(ctx, "nobody", "x"))

	caps, err = auth.Capabilities(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, caps)

	caps, err = auth.Capabilities(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, caps)

	assert.Equal(t, []string{
		"grant:p1:b",
		"grant:p1:a",
		"grant:p1:a",
		"grant:p2:c",
		"revoke:p1:b",
		"revoke:nobody:x",
	}, auth.Operations())
}
