package feed

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommandSource(t *testing.T) {
	ing, _ := newTestIngestor(t)

	_, err := NewCommandSource(CommandConfig{}, ing)
	assert.ErrorIs(t, err, ErrNoCommand)

	src, err := NewCommandSource(CommandConfig{Binary: "/usr/local/bin/ble-scan"}, ing)
	require.NoError(t, err)
	assert.Equal(t, "command:ble-scan", src.Source())
}

func TestCommandSource_FeedsIngestor(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ing, registry := newTestIngestor(t)

	script := "echo '" + appleAdvert + "'; echo '" + phoneAdvert + "'; echo 'not json'; sleep 30"
	src, err := NewCommandSource(CommandConfig{
		Binary: "sh",
		Args:   []string{"-c", script},
	}, ing)
	require.NoError(t, err)

	require.NoError(t, src.Start(context.Background()))
	t.Cleanup(func() { _ = src.Stop() })

	require.Eventually(t, func() bool {
		return ing.Stats().Received == 3
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, Stats{Received: 3, Accepted: 1, Rejected: 1, Malformed: 1}, ing.Stats())
	_, ok := registry.Lookup("e3:ed:26:c7:83:c4")
	assert.True(t, ok)
	assert.Equal(t, uint64(3), src.Stats().Lines)

	require.NoError(t, src.Stop())
}
