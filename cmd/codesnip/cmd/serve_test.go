package cmd

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
	"github.com/Aman-CERP/codesnip/internal/lock"
)

func TestServeCmd_LockHeld(t *testing.T) {
	// Given: another process serving the same workspace
	isolate(t)
	ws := newWorkspace(t, map[string]string{"a.go": "package a\n"})
	lockDir := t.TempDir()
	held := lock.New(lock.PathFor(lockDir, ws))
	require.NoError(t, held.TryAcquire())
	defer held.Release()

	// When: serving
	_, err := execute(t, "serve", "-C", ws, "--lock-dir", lockDir)

	// Then: the second serve refuses to start
	require.Error(t, err)
	assert.Equal(t, cserrors.ErrCodeLockHeld, cserrors.GetCode(err))
}

func TestServeCmd_MetricsAddrInUse(t *testing.T) {
	isolate(t)
	ws := newWorkspace(t, map[string]string{"a.go": "package a\n"})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = execute(t, "serve", "-C", ws, "--lock-dir", t.TempDir(), "--metrics-addr", ln.Addr().String())

	require.Error(t, err)
	assert.Equal(t, cserrors.ErrCodeListenFailed, cserrors.GetCode(err))
}
