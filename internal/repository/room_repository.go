package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"debate_timer/internal/models"
	"debate_timer/internal/storage"
)

type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	FindByID(ctx context.Context, id string) (*models.Room, error)
	UpdateSnapshot(ctx context.Context, id string, snapshot string, seen time.Time) (bool, error)
	Touch(ctx context.Context, id string, seen time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteIdle(ctx context.Context, before time.Time) ([]string, error)
}

type roomRepository struct {
	db *storage.PostgresDB
}

func NewRoomRepository(db *storage.PostgresDB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *roomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// UpdateSnapshot 更新快照，房間不存在時回傳 false
func (r *roomRepository) UpdateSnapshot(ctx context.Context, id string, snapshot string, seen time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"snapshot": snapshot, "last_seen": seen})
	return result.RowsAffected > 0, result.Error
}

func (r *roomRepository) Touch(ctx context.Context, id string, seen time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", id).
		Update("last_seen", seen).Error
}

func (r *roomRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Room{}).Error
}

// DeleteIdle 刪除 before 之後就沒有活動的房間，回傳被刪除的 ID
func (r *roomRepository) DeleteIdle(ctx context.Context, before time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Room{}).Where("last_seen < ?", before).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Where("id IN ? AND last_seen < ?", ids, before).Delete(&models.Room{}).Error
	})
	return ids, err
}
