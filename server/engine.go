package server

import (
	"fmt"
)

type cell struct{ x, y int }

// start 开局：分配网格，按出生点策略摆放玩家，打开录像并广播初始画面。
//
// 出生点策略：队伍按在名单中首次出现的顺序编号，偶数号队伍在左墙(x=0)朝右，
// 奇数号队伍在右墙(x=width-1)朝左；同一面墙上的玩家按名单顺序纵向均分，
// y = (i+1)*height/(n+1)。
func (r *Room) start() {
	g := NewGrid(r.cfg.Grid.Width, r.cfg.Grid.Height)

	var left, right []*Player
	for i, team := range r.teamOrder() {
		if i%2 == 0 {
			left = append(left, r.Teams[team]...)
		} else {
			right = append(right, r.Teams[team]...)
		}
	}
	// 保持名单顺序
	left, right = inRosterOrder(r.Players, left), inRosterOrder(r.Players, right)
	place := func(players []*Player, x int, dir Direction) {
		n := len(players)
		for i, p := range players {
			p.X = x
			p.Y = (i + 1) * g.Height / (n + 1)
			p.Dir = dir
			p.Alive = true
			g.Mark(p.X, p.Y, p.Team)
		}
	}
	place(left, 0, DirRight)
	place(right, g.Width-1, DirLeft)

	r.Grid = g
	r.roster = make([]RosterEntry, 0, len(r.Players))
	for _, p := range r.Players {
		r.roster = append(r.roster, RosterEntry{ID: p.ID, Team: p.Team})
	}
	r.symbols = AssignSymbols(r.roster)
	for i := range r.roster {
		r.roster[i].Symbol = r.symbols[r.roster[i].Team]
	}
	r.setPhase(PhaseRunning)
	r.metrics.IncStarted()

	rec, err := OpenRecorder(r.cfg.SaveDir, r.ID, r.roster)
	if err != nil {
		// 录像失败不影响比赛
		Log.Warnf("open recorder for room=%s: %v", r.ID, err)
	}
	r.recorder = rec
	r.recorder.Record(g.Render(r.symbols))
	r.broadcast(encodeDraw(g.Symbols(r.symbols), r.roster))
}

func inRosterOrder(roster, subset []*Player) []*Player {
	in := make(map[*Player]bool, len(subset))
	for _, p := range subset {
		in[p] = true
	}
	out := make([]*Player, 0, len(subset))
	for _, p := range roster {
		if in[p] {
			out = append(out, p)
		}
	}
	return out
}

// next 推进一个 Tick：同时结算所有存活玩家的移动
func (r *Room) next() {
	if r.phase != PhaseRunning {
		return
	}
	r.tickSeq++
	g := r.Grid

	targets := make(map[cell][]*Player)
	var order []cell
	var eliminated []*Player
	for _, p := range r.Players {
		if !p.Alive || p.Dir == DirNone {
			continue
		}
		dx, dy := p.Dir.Delta()
		c := cell{p.X + dx, p.Y + dy}
		if g.Occupied(c.x, c.y) {
			eliminated = append(eliminated, p)
			continue
		}
		if _, seen := targets[c]; !seen {
			order = append(order, c)
		}
		targets[c] = append(targets[c], p)
	}

	for _, c := range order {
		ps := targets[c]
		if len(ps) > 1 {
			// 迎头相撞：全部出局，格子保持为空
			eliminated = append(eliminated, ps...)
			continue
		}
		p := ps[0]
		g.Mark(c.x, c.y, p.Team)
		p.X, p.Y = c.x, c.y
	}
	for _, p := range eliminated {
		p.Alive = false
	}
	r.metrics.AddEliminations(len(eliminated))

	if err := r.verify(); err != nil {
		r.fail(err)
		return
	}

	if winner, over := r.outcome(r.getTeams(true)); over {
		r.endMatch(winner)
		Log.Infof("match ended in room=%s tick=%d winner=%q", r.ID, r.tickSeq, winner)
		return
	}

	r.broadcast(encodeDraw(g.Symbols(r.symbols), r.roster))
	r.recorder.Record(g.Render(r.symbols))
	r.armTimer(r.cfg.Delay.Default)
}

// outcome 根据存活队伍判断比赛是否结束。
// 多队比赛剩一队即胜，全灭为平局；单队比赛在该队全灭时结束，胜者为该队
func (r *Room) outcome(alive [][]*Player) (TeamID, bool) {
	if r.cfg.Teams.Amount == 1 {
		if len(alive) > 0 {
			return "", false
		}
		order := r.teamOrder()
		if len(order) == 0 {
			return Draw, true
		}
		return order[0], true
	}
	switch len(alive) {
	case 0:
		return Draw, true
	case 1:
		return alive[0][0].Team, true
	default:
		return "", false
	}
}

// endMatch 结束比赛：取消 Tick，广播结果，完成录像
func (r *Room) endMatch(winner TeamID) {
	if r.phase != PhaseRunning {
		return
	}
	r.cancelTimer()
	r.setPhase(PhaseEnded)
	r.metrics.IncEnded()
	r.broadcast(encodeEnd(r.Grid.Symbols(r.symbols), r.roster, winner))
	r.recorder.Record(r.Grid.Render(r.symbols))
	if err := r.recorder.Close(); err != nil {
		Log.Warnf("close recorder for room=%s: %v", r.ID, err)
	}
	r.recorder = nil
}

// killPlayer 比赛中玩家断线：标记出局，轨迹保留（幂等）
func (r *Room) killPlayer(p *Player) {
	if !p.Alive {
		return
	}
	p.Alive = false
	r.metrics.AddEliminations(1)
}

// getTeams 按队伍顺序返回各队成员；aliveOnly 时只保留仍有存活玩家的队伍
func (r *Room) getTeams(aliveOnly bool) [][]*Player {
	var out [][]*Player
	for _, team := range r.teamOrder() {
		members := r.Teams[team]
		if aliveOnly && !anyAlive(members) {
			continue
		}
		out = append(out, members)
	}
	return out
}

func anyAlive(players []*Player) bool {
	for _, p := range players {
		if p.Alive {
			return true
		}
	}
	return false
}

// teamOrder 队伍按在名单中首次出现的顺序
func (r *Room) teamOrder() []TeamID {
	seen := make(map[TeamID]bool, len(r.Teams))
	order := make([]TeamID, 0, len(r.Teams))
	for _, p := range r.Players {
		if !seen[p.Team] {
			seen[p.Team] = true
			order = append(order, p.Team)
		}
	}
	return order
}

// verify 检查比赛中的不变量：每个玩家都在界内，且所在格属于本队
func (r *Room) verify() error {
	for _, p := range r.Players {
		if !r.Grid.InBounds(p.X, p.Y) {
			return fmt.Errorf("player %s out of bounds at (%d,%d)", p.ID, p.X, p.Y)
		}
		if owner := r.Grid.At(p.X, p.Y); owner != p.Team {
			return fmt.Errorf("player %s at (%d,%d) on cell owned by %q", p.ID, p.X, p.Y, owner)
		}
	}
	for team, members := range r.Teams {
		if len(members) != r.cfg.Teams.Size {
			return fmt.Errorf("team %q has %d players, want %d", team, len(members), r.cfg.Teams.Size)
		}
	}
	return nil
}

// fail 内部错误：拆除房间，断开所有连接
func (r *Room) fail(err error) {
	Log.Errorf("room=%s torn down: %v", r.ID, err)
	r.broken = true
	r.cancelTimer()
	if err := r.recorder.Close(); err != nil {
		Log.Warnf("close recorder for room=%s: %v", r.ID, err)
	}
	r.recorder = nil
	r.setPhase(PhaseEnded)
	r.closeMembers()
}
