package server

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	tests := map[string]struct {
		cfg   *Config
		error string
	}{
		"invalid config": {
			cfg:   &Config{Port: 70000, EnableTLS: true},
			error: "certificate is required\nport must be between 0 and 65535\nhandler is required",
		},
		"plain tcp without certificate": {
			cfg: &Config{
				Address: "127.0.0.1",
				Handler: NewMockhandler(ctrl),
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := New(tc.cfg)
			req := require.New(t)

			if tc.error != "" {
				req.EqualError(err, tc.error)
				req.Nil(got)
				return
			}

			req.NoError(err)
			req.Equal(defaultMaxConnections, got.maxConnections)
			req.NotEmpty(got.Addr())
			req.NoError(got.Stop())
		})
	}
}

func TestServer_Name(t *testing.T) {
	s := &Server{}
	got := s.Name()
	assert.Equal(t, "Litetable Server", got)
}

func TestServer_Serve(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	h := NewMockhandler(ctrl)
	h.EXPECT().Handle(gomock.Any()).DoAndReturn(func(conn net.Conn) {
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		_, _ = conn.Write([]byte("echo " + string(buf[:n])))
	})

	s, err := New(&Config{Address: "127.0.0.1", Handler: h})
	req.NoError(err)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	conn, err := net.Dial("tcp", s.Addr())
	req.NoError(err)
	_, err = conn.Write([]byte("COUNT a = 1"))
	req.NoError(err)
	got, err := io.ReadAll(conn)
	req.NoError(err)
	req.Equal("echo COUNT a = 1", string(got))
	req.NoError(conn.Close())

	// a stopped server returns from Start without an error
	req.NoError(s.Stop())
	select {
	case err = <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_MaxConnections(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	release := make(chan struct{})
	h := NewMockhandler(ctrl)
	h.EXPECT().Handle(gomock.Any()).DoAndReturn(func(conn net.Conn) {
		<-release
		_ = conn.Close()
	})

	s, err := New(&Config{Address: "127.0.0.1", Handler: h, MaxConnections: 1})
	req.NoError(err)
	go func() { _ = s.Start() }()

	busy, err := net.Dial("tcp", s.Addr())
	req.NoError(err)
	defer busy.Close()
	req.Eventually(func() bool { return len(s.connSemaphore) == 1 }, time.Second, 5*time.Millisecond)

	// the second connection is closed without being handled
	rejected, err := net.Dial("tcp", s.Addr())
	req.NoError(err)
	defer rejected.Close()
	_ = rejected.SetReadDeadline(time.Now().Add(time.Second))
	_, err = rejected.Read(make([]byte, 1))
	req.ErrorIs(err, io.EOF)

	close(release)
	req.NoError(s.Stop())
}
