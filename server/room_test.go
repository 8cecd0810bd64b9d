package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinWithoutTeamIsSpectator(t *testing.T) {
	r := NewRoom("watchers", testConfig(t))
	c := newFakeConn("s1")

	res := r.join(c, nil)
	assert.True(t, res.Spectator())
	assert.Empty(t, r.Players)
	assert.Empty(t, r.Teams)
	assert.Equal(t, 1, r.NumMembers())
	assert.Equal(t, PhaseAssembling, r.Phase())
	assert.Nil(t, r.Grid)
}

func TestJoinEmptyTeamFormsOwnTeam(t *testing.T) {
	cfg := testConfig(t)
	cfg.Teams = TeamsConfig{Amount: 3, Size: 2}
	cfg.Grid = GridConfig{Width: 10, Height: 10}
	r := NewRoom("solo-teams", cfg)

	res1 := r.join(newFakeConn("c1"), strp(""))
	res2 := r.join(newFakeConn("c2"), strp("X"))
	res3 := r.join(newFakeConn("c3"), strp(""))

	assert.Equal(t, JoinResult{PlayerID: "1", Team: "1"}, res1)
	assert.Equal(t, JoinResult{PlayerID: "2", Team: "X"}, res2)
	assert.Equal(t, JoinResult{PlayerID: "3", Team: "3"}, res3)
	assert.Len(t, r.Teams, 3)
	p := playerByID(r, "1")
	assert.Equal(t, DirNone, p.Dir)
	assert.Equal(t, [2]int{0, 0}, [2]int{p.X, p.Y})
}

func TestSeatRefusals(t *testing.T) {
	cfg := testConfig(t)
	cfg.Teams = TeamsConfig{Amount: 2, Size: 2}
	cfg.Grid = GridConfig{Width: 8, Height: 8}
	r := NewRoom("full", cfg)
	seatAll(t, r, "A", "A", "B")

	// 队伍已满
	assert.True(t, r.join(newFakeConn("x1"), strp("A")).Spectator())
	// 队伍数量已达上限
	assert.True(t, r.join(newFakeConn("x2"), strp("C")).Spectator())
	// 非法队伍名
	assert.True(t, r.join(newFakeConn("x3"), strp("B\nC")).Spectator())

	assert.Len(t, r.Players, 3)
	assert.Len(t, r.Teams, 2)
	assert.Equal(t, 6, r.NumMembers())
	assert.Equal(t, PhaseAssembling, r.Phase())
	for team, members := range r.Teams {
		assert.GreaterOrEqual(t, len(members), 1, team)
		assert.LessOrEqual(t, len(members), cfg.Teams.Size, team)
	}
}

func TestRepeatedJoinKeepsSeat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Teams = TeamsConfig{Amount: 2, Size: 2}
	cfg.Grid = GridConfig{Width: 8, Height: 8}
	r := NewRoom("again", cfg)
	c := newFakeConn("c1")

	first := r.join(c, strp("A"))
	second := r.join(c, strp("B"))
	assert.Equal(t, first, second)
	assert.Len(t, r.Players, 1)

	// 观众之后仍可入座
	s := newFakeConn("s1")
	assert.True(t, r.join(s, nil).Spectator())
	assert.Equal(t, PlayerID("2"), r.join(s, strp("B")).PlayerID)
	assert.Equal(t, 2, r.NumMembers())
}

func TestMatchStartsWhenAllTeamsFull(t *testing.T) {
	r := NewRoom("start", testConfig(t))
	c1 := newFakeConn("c1")
	r.join(c1, strp("A"))
	assert.Equal(t, PhaseAssembling, r.Phase())
	assert.Empty(t, c1.messages(t))

	r.join(newFakeConn("c2"), strp("B"))
	assert.Equal(t, PhaseRunning, r.Phase())
	require.NotNil(t, r.timer, "first tick scheduled")
	require.NotNil(t, r.recorder)

	draw := c1.last(t)
	assert.Equal(t, MsgDraw, draw.Type)
	assert.Len(t, draw.Grid, 5)
	assert.Equal(t, []RosterEntry{
		{ID: "1", Team: "A", Symbol: "A"},
		{ID: "2", Team: "B", Symbol: "B"},
	}, draw.Players)
	assert.Equal(t, "A", draw.Grid[2][0])
	assert.Equal(t, "B", draw.Grid[2][4])
	r.endMatch(Draw)
}

func TestSpectatorDuringRunning(t *testing.T) {
	r := NewRoom("watch", testConfig(t))
	seatAll(t, r, "A", "B")
	roster := append([]*Player(nil), r.Players...)

	s := newFakeConn("s1")
	res := r.join(s, strp("A"))
	assert.True(t, res.Spectator())
	assert.Equal(t, roster, r.Players)
	assert.Len(t, r.Teams["A"], 1)

	r.onInput(Input{ConnID: s.ID(), Command: DirUp})
	assert.EqualValues(t, 1, r.metrics.MovesIgnored)

	r.next()
	draw := s.last(t)
	assert.Equal(t, MsgDraw, draw.Type)
	assert.Len(t, draw.Players, 2)
	r.endMatch(Draw)
}

func TestMovesCoalesceUntilTick(t *testing.T) {
	cfg := testConfig(t)
	cfg.Grid = GridConfig{Width: 9, Height: 9}
	r := NewRoom("coalesce", cfg)
	conns := seatAll(t, r, "A", "B")
	a := playerByID(r, "1")

	r.onInput(Input{ConnID: conns[0].ID(), Command: DirUp})
	r.onInput(Input{ConnID: conns[0].ID(), Command: DirDown})
	r.next()
	assert.Equal(t, [2]int{0, 5}, [2]int{a.X, a.Y})
	assert.EqualValues(t, 2, r.metrics.MovesAccepted)
	r.endMatch(Draw)
}

func TestPreMatchLeave(t *testing.T) {
	cfg := testConfig(t)
	cfg.Teams = TeamsConfig{Amount: 2, Size: 2}
	cfg.Grid = GridConfig{Width: 8, Height: 8}
	r := NewRoom("leave", cfg)
	conns := seatAll(t, r, "A", "A", "B")

	r.leave(conns[1].ID())
	assert.Equal(t, PhaseAssembling, r.Phase())
	require.Len(t, r.Players, 2)
	assert.Equal(t, PlayerID("1"), r.Players[0].ID)
	assert.Equal(t, PlayerID("3"), r.Players[1].ID)
	assert.Len(t, r.Teams, 2)
	assert.Len(t, r.Teams["A"], 1)

	// 编号 3 已被占用，顺延到 4
	res := r.join(newFakeConn("c4"), strp("B"))
	assert.Equal(t, PlayerID("4"), res.PlayerID)
	assert.Equal(t, PhaseAssembling, r.Phase())
}

func TestPreMatchLeaveDeletesEmptyTeam(t *testing.T) {
	cfg := testConfig(t)
	cfg.Teams = TeamsConfig{Amount: 2, Size: 2}
	cfg.Grid = GridConfig{Width: 8, Height: 8}
	r := NewRoom("empty-team", cfg)
	conns := seatAll(t, r, "A", "B")

	r.leave(conns[0].ID())
	assert.NotContains(t, r.Teams, TeamID("A"))
	assert.Len(t, r.Teams, 1)

	// 空出的队伍名额可被新队伍使用
	assert.False(t, r.join(newFakeConn("c3"), strp("C")).Spectator())
}

func TestDisconnectOfSecondToLastTeamEndsMatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Teams = TeamsConfig{Amount: 3, Size: 1}
	cfg.Grid = GridConfig{Width: 10, Height: 10}
	r := NewRoom("dc", cfg)
	conns := seatAll(t, r, "A", "B", "C")

	r.leave(conns[1].ID())
	assert.Equal(t, PhaseRunning, r.Phase())
	assert.False(t, playerByID(r, "2").Alive)
	assert.Len(t, r.Players, 3, "dead players stay in the roster")

	r.leave(conns[2].ID())
	assert.Equal(t, PhaseEnded, r.Phase())
	end := conns[0].last(t)
	assert.Equal(t, MsgEnd, end.Type)
	assert.Equal(t, TeamID("A"), end.Winner)
	assert.Nil(t, r.timer)
	assert.Nil(t, r.recorder)
}

func TestSpectatorLeaveDoesNotMutate(t *testing.T) {
	r := NewRoom("watcher-leave", testConfig(t))
	seatAll(t, r, "A", "B")
	s := newFakeConn("s1")
	r.join(s, nil)

	r.leave(s.ID())
	assert.Equal(t, PhaseRunning, r.Phase())
	assert.True(t, playerByID(r, "1").Alive)
	assert.True(t, playerByID(r, "2").Alive)
	assert.Equal(t, 2, r.NumMembers())
	r.leave("unknown")
	assert.Equal(t, 2, r.NumMembers())
	r.endMatch(Draw)
}

func TestSoloMatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Teams = TeamsConfig{Amount: 1, Size: 1}
	cfg.Grid = GridConfig{Width: 10, Height: 10}
	r := NewRoom("solo", cfg)
	conns := seatAll(t, r, "A")
	require.Equal(t, PhaseRunning, r.Phase())
	watcher := newFakeConn("s1")
	r.join(watcher, nil)
	p := playerByID(r, "1")
	spawn := [2]int{p.X, p.Y}

	const n = 3
	for i := 0; i < n; i++ {
		r.onInput(Input{ConnID: conns[0].ID(), Command: DirUp})
		r.next()
		require.Equal(t, PhaseRunning, r.Phase())
	}
	for i := 0; i <= n; i++ {
		assert.Equal(t, TeamID("A"), r.Grid.At(spawn[0], spawn[1]-i))
	}
	assert.Equal(t, n+1, r.Grid.OccupiedCount())

	r.leave(conns[0].ID())
	assert.Equal(t, PhaseEnded, r.Phase())
	end := watcher.last(t)
	assert.Equal(t, MsgEnd, end.Type)
	assert.Equal(t, TeamID("A"), end.Winner)
}

func TestMovesIgnoredOutsideRunning(t *testing.T) {
	r := NewRoom("idle-moves", testConfig(t))
	c := newFakeConn("c1")
	r.join(c, strp("A"))

	r.onInput(Input{ConnID: c.ID(), Command: DirUp})
	assert.Equal(t, DirNone, playerByID(r, "1").Dir)
	assert.EqualValues(t, 1, r.metrics.MovesIgnored)
}

func TestMalformedTeamIsSpectator(t *testing.T) {
	r := NewRoom("malformed", testConfig(t))

	// "id: team" 是录像头部的分隔格式
	assert.True(t, r.join(newFakeConn("x1"), strp("red: blue")).Spectator())
	assert.True(t, r.join(newFakeConn("x2"), strp("B\tC")).Spectator())
	assert.Empty(t, r.Teams)

	assert.False(t, r.join(newFakeConn("c1"), strp("red:blue")).Spectator())
	assert.Len(t, r.Teams, 1)
}
