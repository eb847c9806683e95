package model

import (
	"time"
)

// ============================================================================
// 账户角色与状态常量
// ============================================================================

const (
	RoleAdmin    = "admin"    // 总管理员
	RoleSubAdmin = "subadmin" // 子管理员（代理）
	RoleUser     = "user"     // 终端用户（店铺）
)

const (
	StateActive    = "active"    // 正常
	StateSuspended = "suspended" // 停用
)

// Account 账户表
// 三级账户（admin / subadmin / user）共用一张表，以 role 字段区分，
// 各级特有字段对不适用的角色保持零值
//
// 【重要】余额字段设计：
// 1. credit  —— 最近一次上级充入的额度
// 2. balance —— 当前可用余额，随消费减少，随再次充值增加
// 3. initial_balance —— （仅 user）最近一次充值后的基准余额
type Account struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID      string `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	Username  string `gorm:"type:varchar(32);uniqueIndex;not null" json:"username"` // 登录名，全局唯一（区分大小写）
	Name      string `gorm:"type:varchar(32);uniqueIndex;not null" json:"name"`     // 显示名，全局唯一（区分大小写）
	Password  string `gorm:"type:varchar(64);not null" json:"-"`                    // bcrypt 哈希，永不外泄
	Role      string `gorm:"type:varchar(16);index;not null" json:"role"`
	State     string `gorm:"type:varchar(16);not null;default:active" json:"state"`
	CreatedBy int64  `gorm:"index;not null" json:"created_by"` // 创建者账户ID（上一级），创建后不可变更

	// 财务字段（subadmin / user）
	Credit         float64 `gorm:"not null;default:0" json:"credit"`          // 最近一次充入额度
	Balance        float64 `gorm:"not null;default:0" json:"balance"`         // 当前可用余额
	InitialBalance float64 `gorm:"not null;default:0" json:"initial_balance"` // （仅 user）充值基准余额
	LastCreditTime string  `gorm:"type:varchar(32)" json:"last_credit_time"`  // 最近充值时间（固定时区格式化串）

	// 店铺与佣金字段（仅 user）
	ShopName        string  `gorm:"type:varchar(32)" json:"shop_name"`
	UserCommission  float64 `gorm:"not null;default:0" json:"user_commission"`
	OwnerCommission float64 `gorm:"not null;default:0" json:"owner_commission"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// Suspended 账户是否已停用
func (a *Account) Suspended() bool {
	return a.State == StateSuspended
}
