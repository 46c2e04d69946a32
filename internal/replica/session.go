package replica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog/log"

	"debate_timer/internal/debate"
)

var (
	ErrNotModerator   = errors.New("only the moderator can change the debate")
	ErrNotInitialized = errors.New("debate state has not been initialized")
)

// Session 是某個連線對一個房間狀態的副本。
// 主持人對副本做轉換並廣播完整狀態，觀眾只接收廣播並整個覆蓋。
type Session struct {
	roomID    string
	role      Role
	publisher Publisher

	mu          sync.Mutex
	state       debate.RunState
	ready       bool
	subscribers []func(debate.RunState)
}

// NewSession 建立房間副本；本機房間不會發送任何訊息
func NewSession(roomID string, role Role, publisher Publisher) *Session {
	if publisher == nil || IsLocal(roomID) {
		publisher = Discard
	}
	return &Session{roomID: roomID, role: role, publisher: publisher}
}

func (s *Session) RoomID() string { return s.roomID }

func (s *Session) Role() Role { return s.role }

// Subscribe 註冊狀態變更的監聽者。
// 監聽者在副本的鎖內被呼叫，不可以回頭呼叫 Session 的方法。
func (s *Session) Subscribe(fn func(debate.RunState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// State 回傳目前的狀態拷貝
func (s *Session) State() (debate.RunState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), s.ready
}

// Initialize 由主持人設定初始狀態並廣播
func (s *Session) Initialize(ctx context.Context, st debate.RunState) error {
	if s.role != RoleModerator {
		log.Warn().Str("room", s.roomID).Str("role", string(s.role)).Msg("observer tried to initialize debate")
		return ErrNotModerator
	}
	if err := st.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st.Clone()
	s.ready = true
	s.notifyLocked()
	s.publishLocked(ctx)
	return nil
}

// Update 對副本套用一個轉換。狀態有變化時才廣播完整狀態。
// 觀眾呼叫時直接拒絕，狀態不變也不廣播。
func (s *Session) Update(ctx context.Context, t debate.Transition) (debate.RunState, []debate.Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return s.state.Clone(), nil, err
	}
	if s.role != RoleModerator {
		log.Warn().Str("room", s.roomID).Str("role", string(s.role)).Msg("rejected mutation from observer")
		return s.state.Clone(), nil, ErrNotModerator
	}
	if !s.ready {
		return debate.RunState{}, nil, ErrNotInitialized
	}

	next, notices := t(s.state)
	if cmp.Equal(s.state, next) {
		return next.Clone(), notices, nil
	}
	s.state = next
	s.notifyLocked()
	s.publishLocked(ctx)
	return next.Clone(), notices, nil
}

// Receive 解析收到的廣播並整個取代本機副本
func (s *Session) Receive(payload []byte) error {
	var st debate.RunState
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	return s.Apply(st)
}

// Apply 以收到的狀態取代本機副本
func (s *Session) Apply(st debate.RunState) error {
	if err := st.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready && cmp.Equal(s.state, st) {
		return nil
	}
	s.state = st
	s.ready = true
	s.notifyLocked()
	return nil
}

func (s *Session) notifyLocked() {
	for _, fn := range s.subscribers {
		fn(s.state.Clone())
	}
}

// publishLocked 在鎖內發送，保證廣播順序與狀態變化順序一致；發送失敗只記錄
func (s *Session) publishLocked(ctx context.Context) {
	if err := s.publisher.Publish(ctx, s.roomID, s.state.Clone()); err != nil {
		log.Error().Err(err).Str("room", s.roomID).Msg("failed to publish debate state")
	}
}
