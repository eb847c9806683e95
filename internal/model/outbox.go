package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 信用事件类型：与转账协议一一对应
const (
	EventUserFunded    = "USER_FUNDED"    // 既有 user 重新充值
	EventUserCreated   = "USER_CREATED"   // 新建 user 并注资
	EventSubAdminTopUp = "SUBADMIN_TOPUP" // subadmin 自身被上级充值
)

// OutboxMessage 事务发件箱
// 信用事件与转账在同一个事务内落库，由后台任务异步投递到 Kafka，
// 保证"转账已提交但事件丢失"不会发生
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
