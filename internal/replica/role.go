package replica

import "strings"

// Role 決定一個連線能否修改辯論狀態
type Role string

const (
	RoleModerator Role = "moderator"
	RoleObserver  Role = "observer"
)

// Hub 是所有房間主題共用的命名空間
const Hub = "debate"

// LocalPrefix 開頭的房間只在本機練習，不會連上網路
const LocalPrefix = "local-"

// Valid 檢查角色字串
func (r Role) Valid() bool {
	return r == RoleModerator || r == RoleObserver
}

// IsLocal 判斷房間是否為本機練習房間
func IsLocal(roomID string) bool {
	return strings.HasPrefix(roomID, LocalPrefix)
}

// RoleFor 建立房間的一方或本機房間是主持人，其他都是觀眾
func RoleFor(roomID string, isCreator bool) Role {
	if isCreator || IsLocal(roomID) {
		return RoleModerator
	}
	return RoleObserver
}

// Topic 回傳房間的廣播主題，例如 debate.room-1
func Topic(roomID string) string {
	return Hub + "." + roomID
}

// RoomFromTopic 從主題名稱取回房間 ID
func RoomFromTopic(topic string) (string, bool) {
	room, ok := strings.CutPrefix(topic, Hub+".")
	if !ok || room == "" {
		return "", false
	}
	return room, true
}
