package hub

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNew(t *testing.T) {
	t.Run("zero ports rejected", func(t *testing.T) {
		_, err := New(Config{Ports: 0})
		assert.ErrorIs(t, err, ErrInvalidPortCount)
	})

	t.Run("negative ports rejected", func(t *testing.T) {
		_, err := New(Config{Ports: -3})
		assert.ErrorIs(t, err, ErrInvalidPortCount)
	})

	t.Run("defaults applied", func(t *testing.T) {
		h, err := New(Config{Ports: 1})
		require.NoError(t, err)
		assert.Equal(t, DefaultPollInterval, h.pollInterval)
		assert.Equal(t, DefaultReadBufferSize, h.readBufSize)
		assert.False(t, h.Running())
	})

	t.Run("no resources allocated before open", func(t *testing.T) {
		h, err := New(Config{Ports: 4})
		require.NoError(t, err)
		_, err = h.Ports()
		assert.ErrorIs(t, err, ErrNotOpen)
	})
}

func TestOpen(t *testing.T) {
	t.Run("allocates requested count", func(t *testing.T) {
		h := newTestHub(t, Config{Ports: 3})
		require.NoError(t, h.Open())

		ports, err := h.Ports()
		require.NoError(t, err)
		require.Len(t, ports, 3)

		seen := make(map[string]struct{})
		for _, p := range ports {
			assert.True(t, strings.HasPrefix(p, "/dev/"), "unexpected device path %q", p)
			_, err := os.Stat(p)
			assert.NoError(t, err, "device %q should exist", p)
			seen[p] = struct{}{}
		}
		assert.Len(t, seen, 3, "paths should be distinct")
	})

	t.Run("reopen replaces endpoints", func(t *testing.T) {
		h := newTestHub(t, Config{Ports: 2})
		require.NoError(t, h.Open())
		require.NoError(t, h.Open())

		ports, err := h.Ports()
		require.NoError(t, err)
		assert.Len(t, ports, 2)

		// The fresh endpoints must actually carry data.
		require.NoError(t, h.Start())
		sender := openClient(t, ports[0])
		receiver := openClient(t, ports[1])
		sender.write(t, []byte("after reopen"))
		assert.Equal(t, []byte("after reopen"), receiver.readWithTimeout(t, testTimeout))
	})
}

func TestOpenRollbackOnAllocationFailure(t *testing.T) {
	var original unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_NOFILE, &original))
	t.Cleanup(func() { _ = unix.Setrlimit(unix.RLIMIT_NOFILE, &original) })

	// The lowest free descriptor number; if the failed Open leaks
	// anything, a later dup lands on a higher number.
	firstFree, err := unix.Dup(1)
	require.NoError(t, err)
	require.NoError(t, unix.Close(firstFree))

	// Each endpoint takes two descriptors, so this leaves room for two
	// endpoints and the third allocation of the batch fails.
	limited := original
	limited.Cur = uint64(firstFree + 4)
	require.NoError(t, unix.Setrlimit(unix.RLIMIT_NOFILE, &limited))

	h, err := New(Config{Ports: 4})
	require.NoError(t, err)
	openErr := h.Open()
	require.NoError(t, unix.Setrlimit(unix.RLIMIT_NOFILE, &original))
	require.Error(t, openErr)

	recheck, err := unix.Dup(1)
	require.NoError(t, err)
	require.NoError(t, unix.Close(recheck))
	assert.Equal(t, firstFree, recheck, "failed Open must close every endpoint it allocated")

	_, err = h.Ports()
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestCloseIdempotent(t *testing.T) {
	h := newTestHub(t, Config{Ports: 2})
	require.NoError(t, h.Open())

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	_, err := h.Ports()
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestStartNotOpen(t *testing.T) {
	h := newTestHub(t, Config{Ports: 1})
	assert.ErrorIs(t, h.Start(), ErrNotOpen)
}

func TestStartStop(t *testing.T) {
	h := newTestHub(t, Config{Ports: 1})
	require.NoError(t, h.Open())

	require.NoError(t, h.Start())
	assert.True(t, h.Running())

	h.Stop()
	assert.False(t, h.Running())

	// Stopping again is a no-op.
	h.Stop()
	assert.False(t, h.Running())

	// Ports stay open across Stop; only Close releases them.
	ports, err := h.Ports()
	require.NoError(t, err)
	assert.Len(t, ports, 1)
}

func TestStopWithoutStart(t *testing.T) {
	h := newTestHub(t, Config{Ports: 1})
	h.Stop()

	require.NoError(t, h.Open())
	h.Stop()
	assert.False(t, h.Running())
}

func TestSession(t *testing.T) {
	t.Run("yields ports and tears down", func(t *testing.T) {
		h := newTestHub(t, Config{Ports: 2})

		var inside []string
		err := h.Session(func(ports []string) error {
			inside = ports
			assert.True(t, h.Running())

			sender := openClient(t, ports[0])
			receiver := openClient(t, ports[1])
			sender.write(t, []byte("scoped"))
			assert.Equal(t, []byte("scoped"), receiver.readWithTimeout(t, testTimeout))
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, inside, 2)

		assert.False(t, h.Running())
		_, err = h.Ports()
		assert.ErrorIs(t, err, ErrNotOpen)
	})

	t.Run("tears down on error", func(t *testing.T) {
		h := newTestHub(t, Config{Ports: 1})

		sentinel := errors.New("boom")
		err := h.Session(func([]string) error { return sentinel })
		assert.ErrorIs(t, err, sentinel)

		assert.False(t, h.Running())
		_, err = h.Ports()
		assert.ErrorIs(t, err, ErrNotOpen)
	})
}
