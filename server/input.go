package server

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 入站消息类型
const (
	MsgJoin   = "join"
	MsgMove   = "move"
	MsgReplay = "replay"
)

// Input 客户端输入（意图），由房间协程记录，在下一次 Tick 中生效
type Input struct {
	ConnID  string
	Command Direction
}

// InputMessage 入站 JSON 结构（WebSocket 文本消息）
// 示例：{"type":"join","room":"r1","team":"A"}
//
//	{"type":"move","direction":"u"}
//	{"type":"replay","room":"r1","file":"r1-20240101T000000-..."}
//
// Team 为 nil 表示未带 team 字段（观战）；空字符串（含 null）表示自成一队
type InputMessage struct {
	Type      string  `json:"type"`
	Room      string  `json:"room,omitempty"`
	Team      *string `json:"team,omitempty"`
	Direction string  `json:"direction,omitempty"`
	File      string  `json:"file,omitempty"`
}

// UnmarshalJSON 区分缺省的 team 与显式的 null
func (im *InputMessage) UnmarshalJSON(b []byte) error {
	type plain InputMessage
	var w struct {
		plain
		Team json.RawMessage `json:"team"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*im = InputMessage(w.plain)
	im.Team = nil
	if len(w.Team) == 0 {
		return nil
	}
	team := ""
	if string(w.Team) != "null" {
		if err := json.Unmarshal(w.Team, &team); err != nil {
			return fmt.Errorf("team: %w", err)
		}
	}
	im.Team = &team
	return nil
}

// DecodeInput 解析一条入站消息；类型名大小写不敏感
func DecodeInput(b []byte) (InputMessage, error) {
	if len(b) == 0 {
		return InputMessage{}, fmt.Errorf("empty message")
	}
	var im InputMessage
	if err := json.Unmarshal(b, &im); err != nil {
		return InputMessage{}, fmt.Errorf("decode input: %w", err)
	}
	im.Type = strings.ToLower(im.Type)
	return im, nil
}

// RoomID 规范化房间名
func (im InputMessage) RoomID() string {
	if im.Room == "" {
		return DefaultRoomID
	}
	return im.Room
}
