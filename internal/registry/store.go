package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"debate_timer/internal/debate"
	"debate_timer/internal/models"
	"debate_timer/internal/repository"
)

// Store 把登記表放在 PostgreSQL，房間 ID 是主鍵，多個實例可以共用
type Store struct {
	rooms repository.RoomRepository
	clock clockwork.Clock
}

func NewStore(rooms repository.RoomRepository, clock clockwork.Clock) *Store {
	return &Store{rooms: rooms, clock: clock}
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	if isLocal(id) {
		return false, nil
	}
	_, err := s.rooms.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find room: %w", err)
	}
	return true, nil
}

func (s *Store) Get(ctx context.Context, id string) (Room, error) {
	if isLocal(id) {
		return Room{}, ErrRoomNotFound
	}
	row, err := s.rooms.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Room{}, ErrRoomNotFound
	}
	if err != nil {
		return Room{}, fmt.Errorf("find room: %w", err)
	}
	return fromRow(row)
}

func (s *Store) Create(ctx context.Context, room Room) error {
	if isLocal(room.ID) {
		return nil
	}
	if !ValidRoomID(room.ID) {
		return ErrInvalidRoomID
	}
	row := &models.Room{ID: room.ID, ModeratorKeyHash: room.ModeratorKeyHash, LastSeen: s.clock.Now()}
	if room.Snapshot != nil {
		snapshot, err := encodeSnapshot(*room.Snapshot)
		if err != nil {
			return err
		}
		row.Snapshot = &snapshot
	}
	err := s.rooms.Create(ctx, row)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrRoomExists
	}
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if isLocal(id) {
		return nil
	}
	if err := s.rooms.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

func (s *Store) UpdateSnapshot(ctx context.Context, id string, st debate.RunState) error {
	if isLocal(id) {
		return nil
	}
	snapshot, err := encodeSnapshot(st)
	if err != nil {
		return err
	}
	found, err := s.rooms.UpdateSnapshot(ctx, id, snapshot, s.clock.Now())
	if err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}
	if !found {
		return ErrRoomNotFound
	}
	return nil
}

func (s *Store) Touch(ctx context.Context, id string) error {
	if isLocal(id) {
		return nil
	}
	if err := s.rooms.Touch(ctx, id, s.clock.Now()); err != nil {
		return fmt.Errorf("touch room: %w", err)
	}
	return nil
}

func (s *Store) Evict(ctx context.Context, before time.Time) ([]string, error) {
	ids, err := s.rooms.DeleteIdle(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("evict rooms: %w", err)
	}
	return ids, nil
}

func encodeSnapshot(st debate.RunState) (string, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(data), nil
}

func fromRow(row *models.Room) (Room, error) {
	room := Room{
		ID:               row.ID,
		ModeratorKeyHash: row.ModeratorKeyHash,
		CreatedAt:        row.CreatedAt,
		LastSeen:         row.LastSeen,
	}
	if row.Snapshot != nil {
		var st debate.RunState
		if err := json.Unmarshal([]byte(*row.Snapshot), &st); err != nil {
			return Room{}, fmt.Errorf("decode snapshot: %w", err)
		}
		room.Snapshot = &st
	}
	return room, nil
}
