package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPermDenied = errors.New("permission denied")

func TestSessionLifecycle(t *testing.T) {
	c := NewCollector()

	c.SessionOpened("alice", "10.0.0.1:50000")
	c.SessionOpened("bob", "10.0.0.2:50001")
	assert.Equal(t, float64(2), testutil.ToFloat64(c.sessionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.sessionsTotal))

	c.SessionClosed("alice", "10.0.0.1:50000")
	assert.Equal(t, float64(1), testutil.ToFloat64(c.sessionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.sessionsTotal))
}

func TestAuthAttempts(t *testing.T) {
	c := NewCollector()

	c.AuthAttempt("alice", "publickey", true)
	c.AuthAttempt("alice", "publickey", true)
	c.AuthAttempt("mallory", "password", false)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.authAttemptsTotal.WithLabelValues("publickey", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.authAttemptsTotal.WithLabelValues("password", "failure")))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.authAttemptsTotal.WithLabelValues("password", "success")))
}

func TestTransferAccounting(t *testing.T) {
	c := NewCollector()

	c.FileOpened("alice", "/upload.bin")
	c.FileClosed("alice", "/upload.bin", 0, 4096)
	c.FileOpened("alice", "/download.bin")
	c.FileClosed("alice", "/download.bin", 1024, 0)

	assert.Equal(t, float64(4096), testutil.ToFloat64(c.transferredBytes.WithLabelValues("upload")))
	assert.Equal(t, float64(1024), testutil.ToFloat64(c.transferredBytes.WithLabelValues("download")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.operationsTotal.WithLabelValues("open", "success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.operationsTotal.WithLabelValues("close", "success")))
}

func TestOperationCounters(t *testing.T) {
	c := NewCollector()

	c.PathRemoved("alice", "/old.txt")
	c.PathRenamed("alice", "/a.txt", "/b.txt")
	c.DirCreated("alice", "/reports")
	c.OperationFailed("alice", "remove", "/locked.txt", errPermDenied)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.operationsTotal.WithLabelValues("remove", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.operationsTotal.WithLabelValues("rename", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.operationsTotal.WithLabelValues("mkdir", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.operationsTotal.WithLabelValues("remove", "failure")))
}

func TestRegistryGathers(t *testing.T) {
	c := NewCollector()
	c.SessionOpened("alice", "10.0.0.1:50000")

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	assert.True(t, names["sftpgate_sessions_active"])
	assert.True(t, names["sftpgate_sessions_total"])
}
