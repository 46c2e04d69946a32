package models

import "encoding/json"

// 中繼協定的訊息類型
const (
	MessageJoinGroup   = "joinGroup"
	MessageLeaveGroup  = "leaveGroup"
	MessageSendToGroup = "sendToGroup"
	MessageAck         = "ack"
	MessageData        = "message"
	MessageSystem      = "system"
)

// 系統事件
const (
	EventConnected = "connected"
	EventNotice    = "notice"
)

// DataTypeJSON 是目前唯一支援的資料格式
const DataTypeJSON = "json"

// 確認訊息的錯誤名稱
const (
	AckForbidden      = "Forbidden"
	AckInvalidMessage = "InvalidMessage"
	AckRateLimited    = "RateLimited"
)

// AckError 描述請求被拒絕的原因
type AckError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Message 是用戶端與中繼之間往來的統一訊息結構
type Message struct {
	Type     string          `json:"type"`
	Group    string          `json:"group,omitempty"`
	AckID    uint64          `json:"ackId,omitempty"`
	DataType string          `json:"dataType,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`

	// 伺服器送出的欄位
	From         string    `json:"from,omitempty"`
	FromUserID   string    `json:"fromUserId,omitempty"`
	Event        string    `json:"event,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	ConnectionID string    `json:"connectionId,omitempty"`
	Success      bool      `json:"success,omitempty"`
	Error        *AckError `json:"error,omitempty"`
}

// NewGroupMessage 創建一個轉發給群組成員的訊息
func NewGroupMessage(group, fromUserID string, data json.RawMessage) Message {
	return Message{
		Type:       MessageData,
		From:       "group",
		FromUserID: fromUserID,
		Group:      group,
		DataType:   DataTypeJSON,
		Data:       data,
	}
}

// NewConnectedMessage 連線建立後送給用戶端的第一個訊息
func NewConnectedMessage(userID, connectionID string) Message {
	return Message{
		Type:         MessageSystem,
		Event:        EventConnected,
		UserID:       userID,
		ConnectionID: connectionID,
	}
}

// NewNoticeMessage 創建一個群組提示訊息
func NewNoticeMessage(group string, data json.RawMessage) Message {
	return Message{
		Type:     MessageSystem,
		Event:    EventNotice,
		Group:    group,
		DataType: DataTypeJSON,
		Data:     data,
	}
}

// NewAck 回覆帶有 ackId 的請求；err 為 nil 表示成功
func NewAck(ackID uint64, err *AckError) Message {
	return Message{Type: MessageAck, AckID: ackID, Success: err == nil, Error: err}
}
