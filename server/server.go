package server

import (
	"net/http"
	"path/filepath"
)

// Server 汇总 HTTP 入口：页面、静态资源、WebSocket 与管理接口
type Server struct {
	cfg   Config
	rooms *RoomManager
}

// NewServer 创建服务
func NewServer(cfg Config, rooms *RoomManager) *Server {
	return &Server{cfg: cfg, rooms: rooms}
}

// Rooms 房间管理器
func (s *Server) Rooms() *RoomManager {
	return s.rooms
}

// Routes 注册所有 HTTP 路由
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.HandleWS)
	// 前后端分离：静态资源放在 web/public
	mux.Handle("GET /public/", http.StripPrefix("/public/", http.FileServer(http.Dir(filepath.Join(s.cfg.WebDir, "public")))))
	// 管理与监控接口
	mux.HandleFunc("GET /admin/config", s.HandleAdminConfig)
	mux.HandleFunc("GET /admin/rooms", s.HandleRooms)
	mux.HandleFunc("GET /metrics", s.HandleMetrics)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	// 大厅页与房间页
	mux.HandleFunc("GET /{$}", s.page("index.html"))
	mux.HandleFunc("GET /{room}", s.page("room.html"))
	return mux
}

func (s *Server) page(name string) http.HandlerFunc {
	path := filepath.Join(s.cfg.WebDir, name)
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}
}
