package device

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestV4L2QuerySkipsNonCaptureNodes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"video0", "video1"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	descs, err := V4L2Query(filepath.Join(dir, "video*"))(context.Background())
	require.NoError(t, err)
	assert.Empty(t, descs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = V4L2Query(filepath.Join(dir, "video*"))(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
