package server

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
)

// Phase 房间所处的比赛阶段
type Phase int32

const (
	PhaseAssembling Phase = iota // 组队中，尚无网格
	PhaseRunning                 // 比赛进行中
	PhaseEnded                   // 比赛已结束，房间只剩观众
)

func (p Phase) String() string {
	switch p {
	case PhaseAssembling:
		return "assembling"
	case PhaseRunning:
		return "running"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Conn 房间向连接推送消息所需的最小接口
type Conn interface {
	ID() string
	Enqueue(b []byte)
	Close()
}

// member 加入房间的连接；player 为 nil 表示观战者
type member struct {
	conn   Conn
	player *Player
}

// JoinResult 加入结果；PlayerID 为空表示以观战身份加入
type JoinResult struct {
	PlayerID PlayerID
	Team     TeamID
}

// Spectator 是否以观战身份加入
func (j JoinResult) Spectator() bool { return j.PlayerID == "" }

type joinCmd struct {
	conn  Conn
	team  *string
	reply chan JoinResult
}

type leaveCmd struct {
	connID string
	reply  chan struct{}
}

// Room 房间：一局比赛的权威状态，只由房间协程读写
type Room struct {
	ID string

	cfg     Config
	Players []*Player            // 按加入顺序
	Teams   map[TeamID][]*Player // 每队成员按加入顺序
	Grid    *Grid                // 仅比赛开始后存在
	members map[string]*member   // connID -> member
	symbols map[TeamID]string    // 开局时根据名单分配
	roster  []RosterEntry        // 开局时固定
	phase   Phase

	inputChan chan Input
	ctrlChan  chan any
	quit      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once

	timer    *time.Timer
	recorder *Recorder
	broken   bool
	tickSeq  int64

	// 供 HTTP 协程读取
	phaseView   atomic.Int32
	memberCount atomic.Int32
	metrics     *RoomMetrics
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(id string, cfg Config) *Room {
	return &Room{
		ID:        id,
		cfg:       cfg,
		Teams:     make(map[TeamID][]*Player),
		members:   make(map[string]*member),
		inputChan: make(chan Input, 256), // 足够缓冲，避免网络读阻塞影响 Tick
		ctrlChan:  make(chan any, 64),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		metrics:   &RoomMetrics{},
	}
}

// Phase 当前阶段（可跨协程读取）
func (r *Room) Phase() Phase {
	return Phase(r.phaseView.Load())
}

// NumMembers 当前连接数（玩家 + 观众）
func (r *Room) NumMembers() int {
	return int(r.memberCount.Load())
}

// Metrics 房间指标
func (r *Room) Metrics() *RoomMetrics {
	return r.metrics
}

func (r *Room) setPhase(p Phase) {
	r.phase = p
	r.phaseView.Store(int32(p))
}

// join 处理加入请求：入座成为玩家或退化为观众；所有队伍满员时开局
func (r *Room) join(c Conn, team *string) JoinResult {
	m, ok := r.members[c.ID()]
	if !ok {
		m = &member{conn: c}
		r.members[c.ID()] = m
		r.memberCount.Store(int32(len(r.members)))
	}
	if m.player != nil {
		return JoinResult{PlayerID: m.player.ID, Team: m.player.Team}
	}

	if r.phase != PhaseAssembling || team == nil {
		r.metrics.IncSpectators()
		Log.Infof("spectator %s joined room=%s phase=%s", c.ID(), r.ID, r.phase)
		return JoinResult{}
	}

	p := r.seat(*team)
	if p == nil {
		r.metrics.IncSpectators()
		Log.Debugf("seat refused: conn=%s room=%s team=%q", c.ID(), r.ID, *team)
		Log.Infof("spectator %s joined room=%s", c.ID(), r.ID)
		return JoinResult{}
	}
	m.player = p
	r.metrics.IncSeated()
	Log.Infof("player %s (id=%s team=%s) joined room=%s", c.ID(), p.ID, p.Team, r.ID)

	if r.fullTeams() == r.cfg.Teams.Amount {
		r.start()
		r.armTimer(r.cfg.Delay.Initial)
		Log.Infof("match started in room=%s", r.ID)
	}
	return JoinResult{PlayerID: p.ID, Team: p.Team}
}

// seat 在容量限制内为新玩家分配队伍；失败返回 nil
func (r *Room) seat(requested string) *Player {
	id := r.nextPlayerID()
	team := TeamID(requested)
	if team == "" {
		team = TeamID(id)
	}
	if !validTeamID(team) {
		return nil
	}

	members, exists := r.Teams[team]
	if !exists && len(r.Teams) >= r.cfg.Teams.Amount {
		return nil
	}
	if len(members) >= r.cfg.Teams.Size {
		return nil
	}

	p := &Player{ID: id, Team: team, Dir: DirNone, Alive: true}
	r.Players = append(r.Players, p)
	r.Teams[team] = append(members, p)
	return p
}

// nextPlayerID 取 |players|+1；组队阶段有人离开后该编号可能已被占用，顺延
func (r *Room) nextPlayerID() PlayerID {
	taken := make(map[PlayerID]bool, len(r.Players))
	for _, p := range r.Players {
		taken[p.ID] = true
	}
	n := len(r.Players) + 1
	for taken[PlayerID(strconv.Itoa(n))] {
		n++
	}
	return PlayerID(strconv.Itoa(n))
}

// validTeamID 队伍名会写入录像头部的 "id: team" 行
func validTeamID(team TeamID) bool {
	if strings.Contains(string(team), ": ") {
		return false
	}
	for _, r := range team {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func (r *Room) fullTeams() int {
	n := 0
	for _, members := range r.Teams {
		if len(members) == r.cfg.Teams.Size {
			n++
		}
	}
	return n
}

// leave 处理连接断开
func (r *Room) leave(connID string) {
	m, ok := r.members[connID]
	if !ok {
		return
	}
	delete(r.members, connID)
	r.memberCount.Store(int32(len(r.members)))

	p := m.player
	if p == nil {
		Log.Infof("spectator %s left room=%s", connID, r.ID)
		return
	}
	Log.Infof("player %s (id=%s team=%s) left room=%s phase=%s", connID, p.ID, p.Team, r.ID, r.phase)

	switch r.phase {
	case PhaseRunning:
		r.killPlayer(p)
		if winner, over := r.outcome(r.getTeams(true)); over {
			r.endMatch(winner)
			Log.Infof("match ended in room=%s winner=%q", r.ID, winner)
		}
	case PhaseAssembling:
		r.removePlayer(p)
	}
}

// removePlayer 组队阶段移除玩家，保持其余玩家顺序，不重新编号
func (r *Room) removePlayer(p *Player) {
	r.Players = removeFrom(r.Players, p)
	team := removeFrom(r.Teams[p.Team], p)
	if len(team) == 0 {
		delete(r.Teams, p.Team)
		return
	}
	r.Teams[p.Team] = team
}

func removeFrom(list []*Player, p *Player) []*Player {
	for i, q := range list {
		if q == p {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// onInput 记录移动意图（不立即改变位置），在下一次 Tick 中生效
func (r *Room) onInput(in Input) {
	m, ok := r.members[in.ConnID]
	if !ok || m.player == nil || !m.player.Alive || r.phase != PhaseRunning || in.Command == DirNone {
		r.metrics.IncIgnored()
		return
	}
	m.player.Dir = in.Command
	r.metrics.IncAccepted()
}

// broadcast 发送给房间内所有连接（含观众）
func (r *Room) broadcast(b []byte) {
	for _, m := range r.members {
		m.conn.Enqueue(b)
	}
}

// closeMembers 断开房间内所有连接
func (r *Room) closeMembers() {
	for _, m := range r.members {
		m.conn.Close()
	}
}
