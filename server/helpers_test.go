package server

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     string
	sendCh chan []byte

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, sendCh: make(chan []byte, 256)}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Enqueue(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	f.frames = append(f.frames, cp)
	select {
	case f.sendCh <- cp:
	default:
	}
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// messages 解码目前收到的所有消息；EndMessage 是 DrawMessage 字段的超集
func (f *fakeConn) messages(t *testing.T) []EndMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EndMessage, 0, len(f.frames))
	for _, b := range f.frames {
		var m EndMessage
		require.NoError(t, json.Unmarshal(b, &m))
		out = append(out, m)
	}
	return out
}

func (f *fakeConn) last(t *testing.T) EndMessage {
	t.Helper()
	msgs := f.messages(t)
	require.NotEmpty(t, msgs, "conn %s received nothing", f.id)
	return msgs[len(msgs)-1]
}

// waitFor 等待满足条件的消息
func (f *fakeConn) waitFor(t *testing.T, timeout time.Duration, match func(EndMessage) bool) EndMessage {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case b := <-f.sendCh:
			var m EndMessage
			require.NoError(t, json.Unmarshal(b, &m))
			if match(m) {
				return m
			}
		case <-deadline:
			t.Fatalf("conn %s: timed out waiting for message", f.id)
			return EndMessage{}
		}
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Grid = GridConfig{Width: 5, Height: 5}
	cfg.Teams = TeamsConfig{Amount: 2, Size: 1}
	cfg.Delay = DelayConfig{Initial: time.Hour, Default: time.Hour}
	cfg.SaveDir = t.TempDir()
	return cfg
}

func strp(s string) *string { return &s }

// seatAll 同步加入一组玩家，返回对应连接
func seatAll(t *testing.T, r *Room, teams ...string) []*fakeConn {
	t.Helper()
	conns := make([]*fakeConn, 0, len(teams))
	for i, team := range teams {
		c := newFakeConn("c" + string(rune('1'+i)))
		res := r.join(c, strp(team))
		require.False(t, res.Spectator(), "seat %d (team %q) refused", i+1, team)
		conns = append(conns, c)
	}
	return conns
}

func playerByID(r *Room, id PlayerID) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}
