package repository

import "debate_timer/internal/storage"

type Repositories struct {
	Room RoomRepository
}

func NewRepositories(db *storage.PostgresDB) *Repositories {
	return &Repositories{
		Room: NewRoomRepository(db),
	}
}
