package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"creditdesk/internal/model"
	"creditdesk/internal/service"
)

// Store service.Store 的 gorm/MySQL 实现
// WithinTx 返回的实例绑定事务连接，其上的全部操作同进同退
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// 编译期确认实现了核心要求的窄接口
var _ service.Store = (*Store)(nil)

func (r *Store) WithinTx(ctx context.Context, fn func(tx service.Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// ============================================================
// 账户
// ============================================================

func (r *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *Store) SaveAccount(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *Store) AccountByID(ctx context.Context, id int64) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *Store) AccountByUUID(ctx context.Context, uuid string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *Store) AccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("BINARY username = ?", username).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// AccountForUpdate 行锁读取，锁持有到事务结束
func (r *Store) AccountForUpdate(ctx context.Context, id int64) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// DebitBalance 条件扣减：balance >= amount 才生效，杜绝并发下扣成负数
func (r *Store) DebitBalance(ctx context.Context, id int64, amount float64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND balance >= ?", id, amount).
		Update("balance", gorm.Expr("balance - ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		account, err := r.AccountByID(ctx, id)
		if err != nil {
			return err
		}
		if account.Balance < amount {
			return service.ErrBalanceNotEnough
		}
		return service.ErrAccountNotFound
	}
	return nil
}

// 唯一性检查使用 BINARY 比较，默认排序规则不区分大小写，这里必须区分

func (r *Store) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("BINARY username = ?", username).
		Count(&count).Error
	return count > 0, err
}

func (r *Store) NameTaken(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("BINARY name = ?", name).
		Count(&count).Error
	return count > 0, err
}

// ============================================================
// 流水与用量
// ============================================================

func (r *Store) AppendLedger(ctx context.Context, entry *model.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Store) ClearLedger(ctx context.Context, subAdminID int64) error {
	return r.db.WithContext(ctx).
		Where("sub_admin_id = ?", subAdminID).
		Delete(&model.LedgerEntry{}).Error
}

func (r *Store) LedgerBySubAdmin(ctx context.Context, subAdminID int64) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("sub_admin_id = ?", subAdminID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *Store) ClearGames(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.GameRecord{}).Error
}

// ============================================================
// 发件箱（后台投递任务也走这里）
// ============================================================

func (r *Store) AppendOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *Store) PendingOutbox(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *Store) MarkOutboxSent(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", model.OutboxStatusSent).Error
}

func (r *Store) IncrementOutboxRetry(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error
}

func (r *Store) MarkOutboxFailed(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.OutboxStatusFailed,
			"retry_count": gorm.Expr("retry_count + 1"),
		}).Error
}
