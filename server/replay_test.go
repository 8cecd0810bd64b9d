package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReplay = "1: A\n2: B\n\n" +
	"———————\n|.....|\n|A...B|\n|.....|\n———————\n\n" +
	"———————\n|.....|\n|AA.BB|\n|.....|\n———————\n\n" +
	"———————\n|.....|\n|AA.BB|\n|.....|\n———————\n"

func TestParseReplay(t *testing.T) {
	rp := ParseReplay(sampleReplay)
	assert.Equal(t, []RosterEntry{
		{ID: "1", Team: "A", Symbol: "A"},
		{ID: "2", Team: "B", Symbol: "B"},
	}, rp.Players)
	require.Len(t, rp.Frames, 3)
	assert.Equal(t, [][]string{
		{".", ".", ".", ".", "."},
		{"A", ".", ".", ".", "B"},
		{".", ".", ".", ".", "."},
	}, rp.Frames[0])
	assert.Equal(t, rp.Frames[1], rp.Frames[2])
}

func TestParseReplaySkipsBadHeaderLines(t *testing.T) {
	rp := ParseReplay("1: A\ngarbage\nx: B\n12: long team\n\n|A|")
	assert.Equal(t, []PlayerID{"1", "12"}, []PlayerID{rp.Players[0].ID, rp.Players[1].ID})
	assert.Equal(t, TeamID("long team"), rp.Players[1].Team)
	assert.Len(t, rp.Frames, 1)
}

func TestLoadReplayErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadReplay(filepath.Join(dir, "missing"), "x")
	assert.Error(t, err)

	_, err = LoadReplay(dir, "x")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// 只按目录内的文件名精确匹配，不解析路径
	require.NoError(t, os.WriteFile(filepath.Join(dir, "match"), []byte(sampleReplay), 0o644))
	_, err = LoadReplay(dir, "../"+filepath.Base(dir)+"/match")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	rp, err := LoadReplay(dir, "match")
	require.NoError(t, err)
	assert.Len(t, rp.Frames, 3)
}

func TestPlayReplayPacesFrames(t *testing.T) {
	c := newFakeConn("r1")
	rp := ParseReplay(sampleReplay)
	delay := 30 * time.Millisecond

	start := time.Now()
	PlayReplay(context.Background(), c, rp, delay)
	elapsed := time.Since(start)

	msgs := c.messages(t)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, MsgDraw, m.Type)
		assert.Equal(t, rp.Frames[i], m.Grid)
		assert.Equal(t, rp.Players, m.Players)
	}
	assert.GreaterOrEqual(t, elapsed, 2*delay)
}

func TestPlayReplayStopsOnCancel(t *testing.T) {
	c := newFakeConn("r1")
	rp := ParseReplay(sampleReplay)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		PlayReplay(ctx, c, rp, time.Hour)
		close(done)
	}()
	c.waitFor(t, time.Second, func(m EndMessage) bool { return m.Type == MsgDraw })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("replay did not stop after cancel")
	}
	assert.Len(t, c.messages(t), 1)
}

func TestRecordThenReplayMatchesLiveBroadcasts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Grid = GridConfig{Width: 7, Height: 5}
	r := NewRoom("round/trip", cfg)
	conns := seatAll(t, r, "A", "red")

	r.onInput(Input{ConnID: conns[0].ID(), Command: DirUp})
	for r.Phase() == PhaseRunning {
		r.next()
	}
	live := conns[0].messages(t)
	require.Equal(t, MsgEnd, live[len(live)-1].Type)

	entries, err := os.ReadDir(cfg.SaveDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "round_trip-"))

	rp, err := LoadReplay(cfg.SaveDir, entries[0].Name())
	require.NoError(t, err)
	require.Len(t, rp.Frames, len(live))
	for i, m := range live {
		assert.Equal(t, m.Grid, rp.Frames[i], "frame %d", i)
	}
	assert.Equal(t, live[0].Players, rp.Players)
}

func TestRecorderSurvivesMissingDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.SaveDir = filepath.Join(cfg.SaveDir, "nested", "saves")
	r := NewRoom("nested", cfg)
	seatAll(t, r, "A", "B")
	r.endMatch("A")

	entries, err := os.ReadDir(cfg.SaveDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecorderOpenFailureDoesNotStopMatch(t *testing.T) {
	cfg := testConfig(t)
	// saveDir 指向普通文件，无法创建目录
	blocker := filepath.Join(cfg.SaveDir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg.SaveDir = blocker
	r := NewRoom("nosave", cfg)
	conns := seatAll(t, r, "A", "B")

	assert.Nil(t, r.recorder)
	r.next()
	r.next()
	assert.Equal(t, PhaseEnded, r.Phase())
	assert.True(t, conns[0].last(t).Draw)
}
