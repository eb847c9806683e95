package model

import (
	"time"
)

// LedgerEntry 子管理员支出流水表
// 记录 subadmin 每一次向下级 user 充值产生的扣款，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改 —— 充值成功即落一条负数金额记录
// 2. subadmin 自身被上级重新充值时整段清空 —— 流水只追踪"上次充值以来的支出"
// 3. 记录全局唯一的转账单号 —— 与 Kafka 事件流对账
type LedgerEntry struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SubAdminID        int64     `gorm:"index;not null" json:"subadmin_id"`
	TransferNo        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transfer_no"`
	Amount            float64   `gorm:"not null" json:"amount"` // 支出为负数
	RecipientUsername string    `gorm:"type:varchar(32);not null" json:"recipient_username"`
	Date              string    `gorm:"type:varchar(32);not null" json:"date"` // 固定时区格式化串
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entry"
}

// GameRecord 用户游戏用量记录
// 绑定在一次充值周期上：user 被重新充值时整段清空
type GameRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	GameID    string    `gorm:"type:varchar(64);not null" json:"game_id"`
	Stake     float64   `gorm:"not null;default:0" json:"stake"`
	Date      string    `gorm:"type:varchar(32)" json:"date"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (GameRecord) TableName() string {
	return "game_record"
}
