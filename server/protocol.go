package server

import "encoding/json"

// 出站消息类型
const (
	MsgDraw = "draw"
	MsgEnd  = "end"
)

// DrawMessage 每个 Tick、开局以及回放的每一帧发送
type DrawMessage struct {
	Type    string        `json:"type"`
	Grid    [][]string    `json:"grid"`
	Players []RosterEntry `json:"players"`
}

// EndMessage 比赛结束；Winner 为空且 Draw 为 true 表示平局
type EndMessage struct {
	Type    string        `json:"type"`
	Grid    [][]string    `json:"grid"`
	Players []RosterEntry `json:"players"`
	Winner  TeamID        `json:"winner"`
	Draw    bool          `json:"draw"`
}

func encodeDraw(grid [][]string, players []RosterEntry) []byte {
	b, _ := json.Marshal(DrawMessage{Type: MsgDraw, Grid: grid, Players: players})
	return b
}

func encodeEnd(grid [][]string, players []RosterEntry, winner TeamID) []byte {
	b, _ := json.Marshal(EndMessage{
		Type:    MsgEnd,
		Grid:    grid,
		Players: players,
		Winner:  winner,
		Draw:    winner == Draw,
	})
	return b
}
