package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"asset-streamer/core/resource"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

type testEnv struct {
	svc *Service
	mgr *resource.Manager
	reg *resource.Registry
	dir string
}

func newTestEnv(t *testing.T, async bool, files map[string]string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, files)

	cfg := resource.DefaultConfig()
	cfg.Async = async
	reg := resource.NewRegistry()
	mgr, err := resource.NewManager("assets", cfg, resource.WithBudget(1<<20), resource.WithRegistry(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	svc := NewService(mgr, NewDirSource(dir), nil, Config{PostSync: true, ReadTimeout: time.Second}, zap.NewNop())
	return &testEnv{svc: svc, mgr: mgr, reg: reg, dir: dir}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
