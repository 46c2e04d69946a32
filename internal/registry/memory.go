package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"debate_timer/internal/debate"
)

// Memory 是程序內的登記表，重啟後清空
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]Room
	clock clockwork.Clock
}

func NewMemory(clock clockwork.Clock) *Memory {
	return &Memory{rooms: make(map[string]Room), clock: clock}
}

func (m *Memory) Exists(_ context.Context, id string) (bool, error) {
	if isLocal(id) {
		return false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[id]
	return ok, nil
}

func (m *Memory) Get(_ context.Context, id string) (Room, error) {
	if isLocal(id) {
		return Room{}, ErrRoomNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return copyRoom(room), nil
}

func (m *Memory) Create(_ context.Context, room Room) error {
	if isLocal(room.ID) {
		return nil
	}
	if !ValidRoomID(room.ID) {
		return ErrInvalidRoomID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; ok {
		return ErrRoomExists
	}
	now := m.clock.Now()
	room.CreatedAt = now
	room.LastSeen = now
	m.rooms[room.ID] = copyRoom(room)
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
	return nil
}

func (m *Memory) UpdateSnapshot(_ context.Context, id string, st debate.RunState) error {
	if isLocal(id) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	snapshot := st.Clone()
	room.Snapshot = &snapshot
	room.LastSeen = m.clock.Now()
	m.rooms[id] = room
	return nil
}

func (m *Memory) Touch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[id]; ok {
		room.LastSeen = m.clock.Now()
		m.rooms[id] = room
	}
	return nil
}

func (m *Memory) Evict(_ context.Context, before time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var evicted []string
	for id, room := range m.rooms {
		if room.LastSeen.Before(before) {
			delete(m.rooms, id)
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)
	return evicted, nil
}

// Len 回傳登記中的房間數
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

func copyRoom(r Room) Room {
	if r.Snapshot != nil {
		snapshot := r.Snapshot.Clone()
		r.Snapshot = &snapshot
	}
	return r
}
