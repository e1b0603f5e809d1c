package assets

import (
	"context"
	"testing"
	"time"

	"asset-streamer/core/resource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFrameLoop_PublishesPendingAssets(t *testing.T) {
	env := newTestEnv(t, true, map[string]string{"a.txt": "alpha"})
	ctx := testContext(t)

	h, err := env.svc.Open(ctx, "a.txt")
	require.NoError(t, err)
	defer h.Close()
	h.Touch()
	require.NoError(t, env.mgr.WaitForIdle(ctx))
	assert.Equal(t, resource.Loading, h.State())

	loop := NewFrameLoop(env.reg, time.Millisecond, time.Second, zap.NewNop())
	assert.Positive(t, loop.Tick())
	assert.Equal(t, resource.Loaded, h.State())

	_, etag, ok := h.Weak().Content()
	assert.True(t, ok)
	assert.Equal(t, sha("alpha"), etag)
}

func TestFrameLoop_Run(t *testing.T) {
	env := newTestEnv(t, true, map[string]string{"a.txt": "alpha"})
	h, err := env.svc.Open(testContext(t), "a.txt")
	require.NoError(t, err)
	defer h.Close()
	h.Touch()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewFrameLoop(env.reg, time.Millisecond, time.Millisecond, zap.NewNop()).Run(ctx) }()

	require.Eventually(t, func() bool { return h.State() == resource.Loaded }, 5*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
