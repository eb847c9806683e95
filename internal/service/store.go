package service

import (
	"context"
	"errors"
	"strings"

	"creditdesk/internal/model"
)

var (
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
)

// FieldErrors 逐字段校验错误，携带每个字段的失败原因
// 出现任何一条即阻止本次请求落库（信用字段的事务随之回滚）
type FieldErrors []string

func (e FieldErrors) Error() string {
	return strings.Join(e, "; ")
}

// Rejection 可直接展示给调用方的业务规则拒绝
// （余额不足、重名等具名规则；事务层故障不属于此类）
type Rejection struct {
	Reason string
}

func (e *Rejection) Error() string {
	return e.Reason
}

func reject(reason string) error {
	return &Rejection{Reason: reason}
}

// Store 账户存储的窄接口
// 核心逻辑只依赖这组操作，由 gorm 仓储实现；测试用内存假实现
//
// 【约定】
// 1. WithinTx 内回调拿到的 Store 绑定同一事务，回调返回错误即整体回滚
// 2. AccountForUpdate 持有行锁直到事务结束，用于余额检查与扣减的串行化
// 3. DebitBalance 是条件更新（balance >= amount），竞态下返回 ErrBalanceNotEnough
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	CreateAccount(ctx context.Context, account *model.Account) error
	SaveAccount(ctx context.Context, account *model.Account) error
	AccountByID(ctx context.Context, id int64) (*model.Account, error)
	AccountByUUID(ctx context.Context, uuid string) (*model.Account, error)
	AccountByUsername(ctx context.Context, username string) (*model.Account, error)
	AccountForUpdate(ctx context.Context, id int64) (*model.Account, error)
	DebitBalance(ctx context.Context, id int64, amount float64) error
	UsernameTaken(ctx context.Context, username string) (bool, error)
	NameTaken(ctx context.Context, name string) (bool, error)

	AppendLedger(ctx context.Context, entry *model.LedgerEntry) error
	ClearLedger(ctx context.Context, subAdminID int64) error
	LedgerBySubAdmin(ctx context.Context, subAdminID int64) ([]*model.LedgerEntry, error)

	ClearGames(ctx context.Context, userID int64) error

	AppendOutbox(ctx context.Context, msg *model.OutboxMessage) error
}

// TransferLocker 按 subadmin 维度的转账互斥锁
// 同一 subadmin 的转账串行化，不同 subadmin 互不阻塞
type TransferLocker interface {
	Acquire(ctx context.Context, subAdminID int64, token string) (release func(context.Context), err error)
}
