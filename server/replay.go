package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ReplayGroup 回放连接加入的广播组，与实时房间区分
func ReplayGroup(roomID string) string {
	return roomID + "?replay"
}

// Replay 解析后的比赛录像
type Replay struct {
	Players []RosterEntry
	Frames  [][][]string
}

// LoadReplay 在 saveDir 中按文件名精确查找录像并解析；不接受路径
func LoadReplay(saveDir, name string) (Replay, error) {
	entries, err := os.ReadDir(saveDir)
	if err != nil {
		return Replay{}, fmt.Errorf("read save dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() != name {
			continue
		}
		data, err := os.ReadFile(filepath.Join(saveDir, e.Name()))
		if err != nil {
			return Replay{}, fmt.Errorf("read replay: %w", err)
		}
		return ParseReplay(string(data)), nil
	}
	return Replay{}, fmt.Errorf("replay %q: %w", name, os.ErrNotExist)
}

// ParseReplay 解析录像文本：名单头 + 以空行分隔的各帧
func ParseReplay(data string) Replay {
	data = strings.ReplaceAll(data, "\r\n", "\n")
	parts := strings.Split(data, snapshotSep)

	var rp Replay
	for _, line := range strings.Split(parts[0], "\n") {
		id, team, ok := strings.Cut(line, ": ")
		if !ok || !isDigits(id) {
			continue
		}
		rp.Players = append(rp.Players, RosterEntry{ID: PlayerID(id), Team: TeamID(team)})
	}
	symbols := AssignSymbols(rp.Players)
	for i := range rp.Players {
		rp.Players[i].Symbol = symbols[rp.Players[i].Team]
	}

	for _, part := range parts[1:] {
		grid := ParseSnapshot(part)
		if len(grid) == 0 {
			continue
		}
		rp.Frames = append(rp.Frames, grid)
	}
	return rp
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// PlayReplay 按 Tick 间隔逐帧发送 draw 消息；ctx 取消（连接关闭）时停止
func PlayReplay(ctx context.Context, c Conn, rp Replay, delay time.Duration) {
	for i, frame := range rp.Frames {
		if ctx.Err() != nil {
			return
		}
		c.Enqueue(encodeDraw(frame, rp.Players))
		if i == len(rp.Frames)-1 {
			return
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
