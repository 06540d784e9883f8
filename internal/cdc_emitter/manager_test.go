package cdc_emitter

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/litetable/litetable-query/internal/index"
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

//go:generate mockgen -destination=conn_mock.go -package=cdc_emitter net Conn

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		cfg := &Config{Port: -1, Buffer: -1, WriteTimeout: -time.Second}
		engine, err := New(cfg)
		require.EqualError(t, err, "invalid port: -1\ninvalid address: \ninvalid buffer: -1\ninvalid write timeout: -1s")
		require.Nil(t, engine)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		engine, err := New(&Config{Address: "127.0.0.1"})
		require.NoError(t, err)
		require.Equal(t, defaultBuffer, cap(engine.events))
		require.Equal(t, defaultWriteTimeout, engine.writeTimeout)
		require.NoError(t, engine.Stop())
	})

	t.Run("Test Name", func(t *testing.T) {
		m := &Manager{}
		require.Equal(t, "CDC Emitter", m.Name())
	})

	t.Run("Test Stop", func(t *testing.T) {
		m := &Manager{}
		assert.Nil(t, m.Stop())
	})
}

func TestManager_Handle(t *testing.T) {
	tests := []struct {
		name       string
		lines      string
		endErr     error
		wantFilter filter
	}{
		{
			name:       "no filter",
			endErr:     io.EOF,
			wantFilter: filter{},
		},
		{
			name:       "filter set on connect",
			lines:      "columns=Gender prefix=user:\n",
			endErr:     io.EOF,
			wantFilter: filter{columns: map[string]struct{}{"Gender": {}}, prefix: "user:"},
		},
		{
			name:       "later line replaces filter",
			lines:      "prefix=a\nprefix=b\n",
			endErr:     errors.New("connection reset"),
			wantFilter: filter{prefix: "b"},
		},
		{
			name:       "bad line keeps filter",
			lines:      "prefix=a\nsort=asc\n",
			endErr:     io.EOF,
			wantFilter: filter{prefix: "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			conn := NewMockConn(ctrl)
			conn.EXPECT().RemoteAddr().Return(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 12345}).AnyTimes()
			conn.EXPECT().Close().Return(nil)

			release := make(chan struct{})
			pending := []byte(tt.lines)
			conn.EXPECT().Read(gomock.Any()).DoAndReturn(func(b []byte) (int, error) {
				if len(pending) > 0 {
					n := copy(b, pending)
					pending = pending[n:]
					return n, nil
				}
				<-release
				return 0, tt.endErr
			}).AnyTimes()

			m := &Manager{subs: make(map[net.Conn]filter)}
			done := make(chan struct{})
			go func() {
				defer close(done)
				m.handle(conn)
			}()

			require.Eventually(t, func() bool {
				m.subsMux.Lock()
				defer m.subsMux.Unlock()
				f, ok := m.subs[conn]
				return ok && f.prefix == tt.wantFilter.prefix
			}, time.Second, 5*time.Millisecond)

			m.subsMux.Lock()
			require.Equal(t, tt.wantFilter, m.subs[conn])
			m.subsMux.Unlock()

			close(release)
			<-done
			require.Zero(t, m.Subscribers())
		})
	}
}

func TestManager_Subscribe(t *testing.T) {
	req := require.New(t)
	m, err := New(&Config{Address: "127.0.0.1"})
	req.NoError(err)
	req.NoError(m.Start())
	defer func() { req.NoError(m.Stop()) }()

	everything, err := net.Dial("tcp", m.Addr())
	req.NoError(err)
	defer everything.Close()

	users, err := net.Dial("tcp", m.Addr())
	req.NoError(err)
	defer users.Close()
	_, err = users.Write([]byte("prefix=user: columns=Gender\n"))
	req.NoError(err)

	req.Eventually(func() bool {
		m.subsMux.Lock()
		defer m.subsMux.Unlock()
		if len(m.subs) != 2 {
			return false
		}
		for _, f := range m.subs {
			if f.prefix == "user:" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	male := litetable.String("Male")
	m.Emit(&CDCParams{
		Operation: litetable.OperationWrite,
		RowID:     "frank",
		Fields:    map[string]litetable.Value{"Gender": male},
		Timestamp: at,
	})
	m.Emit(&CDCParams{
		Operation: litetable.OperationWrite,
		RowID:     "user:1",
		Fields:    map[string]litetable.Value{"Score": litetable.Int(3)},
		Timestamp: at,
	})
	m.Emit(&CDCParams{
		Operation: litetable.OperationWrite,
		RowID:     "user:2",
		Fields:    map[string]litetable.Value{"Gender": male},
		Timestamp: at,
	})

	read := func(conn net.Conn, n int) []string {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		r := bufio.NewReader(conn)
		var rows []string
		for range n {
			line, err := r.ReadBytes('\n')
			req.NoError(err)
			var got event
			req.NoError(json.Unmarshal(line, &got))
			rows = append(rows, got.RowID)
		}
		return rows
	}

	req.Equal([]string{"frank", "user:1", "user:2"}, read(everything, 3))

	_ = users.SetReadDeadline(time.Now().Add(time.Second))
	line, err := bufio.NewReader(users).ReadBytes('\n')
	req.NoError(err)
	var got event
	req.NoError(json.Unmarshal(line, &got))
	req.Equal(event{
		Operation: "WRITE",
		RowID:     "user:2",
		Fields:    map[string]string{"Gender": `"Male"`},
		Indexes: []string{
			index.AnyKey("Gender"),
			index.ClassKey("Gender", litetable.ClassString),
			index.ValueKey("Gender", male),
		},
		Timestamp: at.UnixNano(),
	}, got)
}
