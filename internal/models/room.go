package models

import "time"

// Room 表示一個已登記的辯論房間
type Room struct {
	ID string `gorm:"primaryKey;size:64"`
	// ModeratorKeyHash 是主持人憑證金鑰的 bcrypt 雜湊
	ModeratorKeyHash string `gorm:"size:100"`
	// Snapshot 是最後一次上傳的完整狀態 (JSON)，沒有時為 NULL
	Snapshot  *string   `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
	LastSeen  time.Time `gorm:"index;not null"`
}
