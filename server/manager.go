package server

import (
	"sort"
	"sync"
)

// RoomInfo 房间列表条目
type RoomInfo struct {
	ID      string `json:"id"`
	Phase   string `json:"phase"`
	Members int    `json:"members"`
	Replays int    `json:"replays"`
}

type roomEntry struct {
	room *Room
	refs int
}

// RoomManager 管理多个房间的生命周期：首次加入时创建，最后一个连接释放后移除
type RoomManager struct {
	cfg Config

	mu      sync.RWMutex
	rooms   map[string]*roomEntry
	replays map[string]int // 回放广播组 -> 连接数
}

// NewRoomManager 创建房间管理器
func NewRoomManager(cfg Config) *RoomManager {
	return &RoomManager{
		cfg:     cfg,
		rooms:   make(map[string]*roomEntry),
		replays: make(map[string]int),
	}
}

// Acquire 获取或创建房间并持有一个引用；新房间会启动房间协程。
// 已因内部错误退出的房间会被新房间替换
func (m *RoomManager) Acquire(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rooms[id]
	if !ok || e.room.Closed() {
		r := NewRoom(id, m.cfg)
		e = &roomEntry{room: r}
		m.rooms[id] = e
		go r.Run()
		Log.Debugf("room=%s created", id)
	}
	e.refs++
	return e.room
}

// Release 释放一个引用；引用归零时停止并移除房间
func (m *RoomManager) Release(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rooms[r.ID]
	if !ok || e.room != r {
		// 已被替换的旧房间
		r.Stop()
		return
	}
	e.refs--
	if e.refs > 0 {
		return
	}
	delete(m.rooms, r.ID)
	r.Stop()
	Log.Debugf("room=%s removed", r.ID)
}

// Lookup 查找已存在的房间，不创建
func (m *RoomManager) Lookup(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.rooms[id]
	if !ok {
		return nil, false
	}
	return e.room, true
}

// JoinReplay 记录一个回放连接
func (m *RoomManager) JoinReplay(group string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replays[group]++
}

// LeaveReplay 回放连接离开
func (m *RoomManager) LeaveReplay(group string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replays[group] <= 1 {
		delete(m.replays, group)
		return
	}
	m.replays[group]--
}

// ListRooms 返回所有活动房间，按名称排序
func (m *RoomManager) ListRooms() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for id, e := range m.rooms {
		out = append(out, RoomInfo{
			ID:      id,
			Phase:   e.room.Phase().String(),
			Members: e.room.NumMembers(),
			Replays: m.replays[ReplayGroup(id)],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shutdown 停止所有房间
func (m *RoomManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.rooms {
		e.room.Stop()
		delete(m.rooms, id)
	}
}
