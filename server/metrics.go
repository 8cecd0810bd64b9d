package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount         int64 // 已执行的 Tick 次数
	MovesAccepted     int64 // 被接受的移动指令
	MovesIgnored      int64 // 观战者、已出局玩家或非比赛阶段的移动指令
	ChanFullDiscarded int64 // 因通道满被丢弃的输入数
	PlayersSeated     int64 // 入座的玩家数
	SpectatorsJoined  int64 // 以观战身份加入的连接数
	Eliminations      int64 // 出局次数（含比赛中断线）
	MatchesStarted    int64
	MatchesEnded      int64
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) IncAccepted()          { atomic.AddInt64(&m.MovesAccepted, 1) }
func (m *RoomMetrics) IncIgnored()           { atomic.AddInt64(&m.MovesIgnored, 1) }
func (m *RoomMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *RoomMetrics) IncSeated()            { atomic.AddInt64(&m.PlayersSeated, 1) }
func (m *RoomMetrics) IncSpectators()        { atomic.AddInt64(&m.SpectatorsJoined, 1) }
func (m *RoomMetrics) AddEliminations(n int) { atomic.AddInt64(&m.Eliminations, int64(n)) }
func (m *RoomMetrics) IncStarted()           { atomic.AddInt64(&m.MatchesStarted, 1) }
func (m *RoomMetrics) IncEnded()             { atomic.AddInt64(&m.MatchesEnded, 1) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"moves_accepted":      atomic.LoadInt64(&m.MovesAccepted),
		"moves_ignored":       atomic.LoadInt64(&m.MovesIgnored),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"players_seated":      atomic.LoadInt64(&m.PlayersSeated),
		"spectators_joined":   atomic.LoadInt64(&m.SpectatorsJoined),
		"eliminations":        atomic.LoadInt64(&m.Eliminations),
		"matches_started":     atomic.LoadInt64(&m.MatchesStarted),
		"matches_ended":       atomic.LoadInt64(&m.MatchesEnded),
		"avg_tick_ms":         avgMs,
	}
}
