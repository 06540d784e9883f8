package reaper

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestNew(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		cfg   *Config
		error string
	}{
		"invalid config": {
			cfg:   &Config{},
			error: "storage cannot be nil\nGCInterval must be greater than 0\nDerivedTTL must be greater than 0",
		},
		"valid config": {
			cfg: &Config{GCInterval: 30, DerivedTTL: 600},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if tc.error == "" {
				tc.cfg.Storage = NewMockstorage(gomock.NewController(t))
			}
			got, err := New(tc.cfg)
			if tc.error != "" {
				require.EqualError(t, err, tc.error)
				require.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.Equal(t, 10*time.Minute, got.ttl)
			require.Equal(t, 30*time.Second, got.reapInterval)
			require.Equal(t, "Reaper", got.Name())
		})
	}
}

func TestReaper_garbageCollector(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockStorage := NewMockstorage(ctrl)
	mockStorage.EXPECT().Expire(10 * time.Minute).Return(3)

	r, err := New(&Config{Storage: mockStorage, GCInterval: 30, DerivedTTL: 600})
	require.NoError(t, err)
	require.Equal(t, 3, r.garbageCollector())
}

func TestReaper_StartStop(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockStorage := NewMockstorage(ctrl)

	var sweeps atomic.Int32
	mockStorage.EXPECT().Expire(time.Second).DoAndReturn(func(time.Duration) int {
		sweeps.Add(1)
		return 0
	}).MinTimes(1)

	r, err := New(&Config{Storage: mockStorage, GCInterval: 1, DerivedTTL: 1})
	require.NoError(t, err)
	// sweep faster than the configured interval
	r.reapInterval = 10 * time.Millisecond

	require.NoError(t, r.Start())
	require.Eventually(t, func() bool { return sweeps.Load() >= 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, r.Stop())

	after := sweeps.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, sweeps.Load())
}
