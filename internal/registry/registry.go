// Package registry 記錄哪些房間目前有主持人，並保存最後的狀態快照。
package registry

import (
	"context"
	"errors"
	"regexp"
	"time"

	"debate_timer/internal/debate"
	"debate_timer/internal/replica"
)

var (
	ErrRoomExists    = errors.New("room already exists")
	ErrRoomNotFound  = errors.New("room not found")
	ErrInvalidRoomID = errors.New("invalid room id")
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidRoomID 房間 ID 會出現在主題名稱中，只允許英數字、底線與連字號
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// Room 是一個已登記的房間
type Room struct {
	ID               string
	ModeratorKeyHash string
	Snapshot         *debate.RunState
	CreatedAt        time.Time
	LastSeen         time.Time
}

// Registry 是房間登記的儲存介面。
// 本機練習房間（local- 開頭）永遠不存在，建立時直接成功但不登記。
type Registry interface {
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (Room, error)
	Create(ctx context.Context, room Room) error
	Delete(ctx context.Context, id string) error
	UpdateSnapshot(ctx context.Context, id string, st debate.RunState) error
	Touch(ctx context.Context, id string) error
	// Evict 移除 LastSeen 早於 before 的房間，回傳被移除的 ID
	Evict(ctx context.Context, before time.Time) ([]string, error)
}

func isLocal(id string) bool {
	return replica.IsLocal(id)
}
