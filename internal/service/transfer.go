package service

import (
	"context"
	"encoding/json"
	"fmt"

	"creditdesk/internal/model"
	"creditdesk/pkg/clock"
	"creditdesk/pkg/idgen"
)

// TransferService 信用转账协议
//
// 将一笔额度从 subadmin 的余额原子地转入 user 的余额，两种形态：
//  1. 新建 user 注资 —— 建号与扣款同一事务提交
//  2. 既有 user 再充值 —— 余额累加（是"充入"不是"设置"），重置用量周期
//
// 【关键点】防止并发超扣：
// 两个并发请求各自通过过期余额的检查后不能都扣款成功。
// 协议在同一事务内以行锁重读 subadmin 余额（不信任事务外的预读值），
// 扣减本身再以条件更新（balance >= amount）兜底
type TransferService struct {
	store  Store
	locker TransferLocker
	clock  *clock.Clock
	topic  string
}

func NewTransferService(store Store, locker TransferLocker, clk *clock.Clock, topic string) *TransferService {
	return &TransferService{
		store:  store,
		locker: locker,
		clock:  clk,
		topic:  topic,
	}
}

// LockSubAdmin 获取该 subadmin 的转账锁，调用方负责在事务结束后释放
func (s *TransferService) LockSubAdmin(ctx context.Context, subAdminID int64, token string) (func(context.Context), error) {
	release, err := s.locker.Acquire(ctx, subAdminID, token)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	return release, nil
}

// Fund 在既有事务内执行一笔转账，建号流程与更新流程走同一入口
//
// user.ID == 0 视为新建注资：credit = balance = initial_balance = amount；
// 否则为再充值：credit = amount，balance 累加，基准余额与用量周期重置。
// 任一步失败整个事务回滚，两个文档要么同时可见要么都不可见
func (s *TransferService) Fund(ctx context.Context, tx Store, subAdminID int64, user *model.Account, amount float64) error {
	// 行锁重读，过期余额不作数
	sub, err := tx.AccountForUpdate(ctx, subAdminID)
	if err != nil {
		return err
	}
	if sub.Balance < amount {
		return ErrBalanceNotEnough
	}
	if err := tx.DebitBalance(ctx, subAdminID, amount); err != nil {
		return err
	}

	now := s.clock.Stamp()
	transferNo := idgen.GenerateTransferNo()
	entry := &model.LedgerEntry{
		SubAdminID:        subAdminID,
		TransferNo:        transferNo,
		Amount:            -amount,
		RecipientUsername: user.Username,
		Date:              now,
	}
	if err := tx.AppendLedger(ctx, entry); err != nil {
		return fmt.Errorf("记录流水失败: %w", err)
	}

	eventType := model.EventUserFunded
	if user.ID == 0 {
		user.Credit = amount
		user.Balance = amount
		user.InitialBalance = amount
		user.LastCreditTime = now
		if err := tx.CreateAccount(ctx, user); err != nil {
			return fmt.Errorf("创建账户失败: %w", err)
		}
		eventType = model.EventUserCreated
	} else {
		user.Credit = amount
		user.Balance += amount
		user.InitialBalance = user.Balance
		user.LastCreditTime = now
		// 充值开启新的用量周期
		if err := tx.ClearGames(ctx, user.ID); err != nil {
			return fmt.Errorf("清空用量记录失败: %w", err)
		}
	}

	return s.enqueueEvent(ctx, tx, eventType, transferNo, subAdminID, user.Username, amount, now)
}

// TopUpSubAdmin subadmin 自身被上级重新充值
// balance 累加（不是替换），流水整段清空 —— 流水只追踪上次充值以来的支出。
// admin 不持有余额，这里没有对应的扣款方
func (s *TransferService) TopUpSubAdmin(ctx context.Context, tx Store, sub *model.Account, amount float64) error {
	now := s.clock.Stamp()
	sub.Credit = amount
	sub.Balance += amount
	sub.LastCreditTime = now

	if err := tx.ClearLedger(ctx, sub.ID); err != nil {
		return fmt.Errorf("清空流水失败: %w", err)
	}
	return s.enqueueEvent(ctx, tx, model.EventSubAdminTopUp, "", sub.ID, sub.Username, amount, now)
}

// enqueueEvent 信用事件与转账同事务落发件箱，由后台任务投递 Kafka
func (s *TransferService) enqueueEvent(ctx context.Context, tx Store, eventType, transferNo string, subAdminID int64, recipient string, amount float64, date string) error {
	payload := map[string]interface{}{
		"event_no":           idgen.GenerateEventNo(),
		"event_type":         eventType,
		"transfer_no":        transferNo,
		"subadmin_id":        subAdminID,
		"recipient_username": recipient,
		"amount":             amount,
		"date":               date,
	}
	payloadBytes, _ := json.Marshal(payload)

	msg := &model.OutboxMessage{
		MessageKey: recipient,
		Topic:      s.topic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := tx.AppendOutbox(ctx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
