package server

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const snapshotSep = "\n\n"

// Recorder 比赛录像：追加写入的文本文件。
// 格式：每行一个 "<playerID>: <teamID>" 的名单头，之后每一帧前加一个空行
type Recorder struct {
	Path string

	f      *os.File
	w      *bufio.Writer
	failed bool
}

// MatchID 生成录像文件名：<房间>-<UTC 时间>-<uuid>
func MatchID(roomID string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", sanitizeName(roomID), now.UTC().Format("20060102T150405"), uuid.NewString())
}

func sanitizeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "room"
	}
	return s
}

// OpenRecorder 在 saveDir 下创建录像文件并写入名单头
func OpenRecorder(saveDir, roomID string, roster []RosterEntry) (*Recorder, error) {
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	path := filepath.Join(saveDir, MatchID(roomID, time.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create match file: %w", err)
	}

	rec := &Recorder{Path: path, f: f, w: bufio.NewWriter(f)}
	lines := make([]string, 0, len(roster))
	for _, e := range roster {
		lines = append(lines, fmt.Sprintf("%s: %s", e.ID, e.Team))
	}
	if _, err := rec.w.WriteString(strings.Join(lines, "\n")); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	Log.Debugf("recording room=%s to %s", roomID, path)
	return rec, nil
}

// Record 追加一帧；写入失败只记录一次日志，之后的帧跳过
func (rec *Recorder) Record(snapshot string) {
	if rec == nil || rec.failed {
		return
	}
	if _, err := rec.w.WriteString(snapshotSep + snapshot); err != nil {
		rec.fail(err)
		return
	}
	if err := rec.w.Flush(); err != nil {
		rec.fail(err)
	}
}

func (rec *Recorder) fail(err error) {
	rec.failed = true
	Log.Warnf("recorder %s: %v; further snapshots skipped", rec.Path, err)
}

// Close 刷新缓冲并关闭文件（可重复调用）
func (rec *Recorder) Close() error {
	if rec == nil || rec.f == nil {
		return nil
	}
	f := rec.f
	rec.f = nil
	flushErr := rec.w.Flush()
	closeErr := f.Close()
	if flushErr != nil && !rec.failed {
		return fmt.Errorf("flush %s: %w", rec.Path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", rec.Path, closeErr)
	}
	return nil
}
