package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminConfig 返回当前配置快照（运行期只读）
// GET /admin/config
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	type delays struct {
		InitialMs int64 `json:"initial"`
		DefaultMs int64 `json:"default"`
	}
	payload := map[string]any{
		"port":    s.cfg.Port,
		"teams":   s.cfg.Teams,
		"grid":    s.cfg.Grid,
		"delay":   delays{InitialMs: s.cfg.Delay.Initial.Milliseconds(), DefaultMs: s.cfg.Delay.Default.Milliseconds()},
		"saveDir": s.cfg.SaveDir,
	}
	writeJSON(w, http.StatusOK, payload)
}

// HandleRooms 列出活动房间
// GET /admin/rooms
func (s *Server) HandleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rooms": s.rooms.ListRooms()})
}

// HandleMetrics 输出指定房间的运行指标；不存在的房间返回 404，不会创建房间
// GET /metrics?room=room-1
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = DefaultRoomID
	}
	room, ok := s.rooms.Lookup(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	payload := map[string]any{
		"room":    roomID,
		"phase":   room.Phase().String(),
		"members": room.NumMembers(),
		"metrics": room.Metrics().Snapshot(),
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
