package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"debate_timer/internal/debate"
	"debate_timer/internal/registry"
	"debate_timer/internal/replica"
	"debate_timer/internal/utils"
)

// ErrForbidden 表示沒有有效的主持人憑證
var ErrForbidden = errors.New("moderator token required")

// moderatorKeyCost 金鑰是隨機 UUID，不是使用者密碼
const moderatorKeyCost = bcrypt.MinCost

// RoomStatus 是房間查詢的結果
type RoomStatus struct {
	Exists bool             `json:"exists"`
	State  *debate.RunState `json:"state,omitempty"`
}

type RoomService struct {
	registry registry.Registry
	tokens   *utils.TokenManager

	mu       sync.RWMutex
	onDelete []func(roomID string)
}

func NewRoomService(reg registry.Registry, tokens *utils.TokenManager) *RoomService {
	return &RoomService{registry: reg, tokens: tokens}
}

// OnDelete 註冊房間被刪除後的處理
func (s *RoomService) OnDelete(fn func(roomID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelete = append(s.onDelete, fn)
}

// CheckRoom 查詢房間是否存在；本機房間永遠不存在
func (s *RoomService) CheckRoom(ctx context.Context, roomID string) (RoomStatus, error) {
	if replica.IsLocal(roomID) {
		return RoomStatus{}, nil
	}
	room, err := s.registry.Get(ctx, roomID)
	if errors.Is(err, registry.ErrRoomNotFound) {
		return RoomStatus{}, nil
	}
	if err != nil {
		return RoomStatus{}, err
	}
	return RoomStatus{Exists: true, State: room.Snapshot}, nil
}

// CreateRoom 登記房間並簽發主持人憑證；本機房間不登記也不簽發
func (s *RoomService) CreateRoom(ctx context.Context, roomID string, st *debate.RunState) (string, error) {
	if replica.IsLocal(roomID) {
		return "", nil
	}
	if st != nil {
		if err := st.Validate(); err != nil {
			return "", err
		}
	}

	key := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), moderatorKeyCost)
	if err != nil {
		return "", fmt.Errorf("hash moderator key: %w", err)
	}
	if err := s.registry.Create(ctx, registry.Room{ID: roomID, ModeratorKeyHash: string(hash), Snapshot: st}); err != nil {
		return "", err
	}

	token, err := s.tokens.GenerateModeratorToken(roomID, key)
	if err != nil {
		return "", err
	}
	log.Info().Str("room", roomID).Msg("room created")
	return token, nil
}

// UpdateSnapshot 更新房間保存的狀態
func (s *RoomService) UpdateSnapshot(ctx context.Context, roomID, token string, st debate.RunState) error {
	if replica.IsLocal(roomID) {
		return nil
	}
	if err := st.Validate(); err != nil {
		return err
	}
	exists, err := s.registry.Exists(ctx, roomID)
	if err != nil {
		return err
	}
	if !exists {
		return registry.ErrRoomNotFound
	}
	if err := s.Authorize(ctx, roomID, token); err != nil {
		return err
	}
	return s.registry.UpdateSnapshot(ctx, roomID, st)
}

// DeleteRoom 移除登記；房間不存在時視為成功
func (s *RoomService) DeleteRoom(ctx context.Context, roomID, token string) error {
	if replica.IsLocal(roomID) {
		s.notifyDelete(roomID)
		return nil
	}
	exists, err := s.registry.Exists(ctx, roomID)
	if err != nil {
		return err
	}
	if !exists {
		s.notifyDelete(roomID)
		return nil
	}
	if err := s.Authorize(ctx, roomID, token); err != nil {
		return err
	}
	if err := s.registry.Delete(ctx, roomID); err != nil {
		return err
	}
	log.Info().Str("room", roomID).Msg("room deleted")
	s.notifyDelete(roomID)
	return nil
}

// Authorize 驗證主持人憑證屬於這個房間，成功時更新房間的活動時間
func (s *RoomService) Authorize(ctx context.Context, roomID, token string) error {
	claims, err := s.tokens.ParseModeratorToken(token, roomID)
	if err != nil {
		log.Warn().Str("room", roomID).Err(err).Msg("rejected moderator token")
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	room, err := s.registry.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(room.ModeratorKeyHash), []byte(claims.Key)); err != nil {
		log.Warn().Str("room", roomID).Msg("moderator key does not match")
		return ErrForbidden
	}
	if err := s.registry.Touch(ctx, roomID); err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("failed to touch room")
	}
	return nil
}

func (s *RoomService) notifyDelete(roomID string) {
	s.mu.RLock()
	hooks := append([]func(string){}, s.onDelete...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(roomID)
	}
}

// snapshotPublisher 把主持人的每次變化寫回房間登記，讓新加入的觀眾先取得快照
type snapshotPublisher struct {
	registry registry.Registry
}

func (p snapshotPublisher) Publish(ctx context.Context, roomID string, st debate.RunState) error {
	err := p.registry.UpdateSnapshot(ctx, roomID, st)
	if errors.Is(err, registry.ErrRoomNotFound) {
		return nil
	}
	return err
}
