package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditdesk/internal/model"
	"creditdesk/pkg/clock"
	"creditdesk/pkg/idgen"
)

func testClock(t *testing.T) *clock.Clock {
	t.Helper()
	clk, err := clock.New("UTC")
	require.NoError(t, err)
	return clk
}

func newTransferFixture(t *testing.T) (*TransferService, *fakeStore) {
	t.Helper()
	idgen.Init(1)
	store := newFakeStore()
	svc := NewTransferService(store, noopLocker{}, testClock(t), "credit_events")
	return svc, store
}

func seedSubAdmin(store *fakeStore, balance float64) *model.Account {
	return store.put(&model.Account{
		UUID:     "sub-uuid-1",
		Username: "subadmin01",
		Name:     "subname01",
		Role:     model.RoleSubAdmin,
		State:    model.StateActive,
		Balance:  balance,
		Credit:   balance,
	})
}

func TestFundNewUserConservation(t *testing.T) {
	svc, store := newTransferFixture(t)
	sub := seedSubAdmin(store, 500)

	user := &model.Account{
		UUID:     "user-uuid-1",
		Username: "newuser01",
		Name:     "newname01",
		Role:     model.RoleUser,
		State:    model.StateActive,
	}
	err := store.WithinTx(context.Background(), func(tx Store) error {
		return svc.Fund(context.Background(), tx, sub.ID, user, 200)
	})
	require.NoError(t, err)

	// 扣减方与入账方金额守恒
	assert.Equal(t, float64(300), store.account(sub.ID).Balance)
	require.NotZero(t, user.ID)
	got := store.account(user.ID)
	assert.Equal(t, float64(200), got.Credit)
	assert.Equal(t, float64(200), got.Balance)
	assert.Equal(t, float64(200), got.InitialBalance)
	assert.NotEmpty(t, got.LastCreditTime)

	entries := store.ledgerOf(sub.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, float64(-200), entries[0].Amount)
	assert.Equal(t, "newuser01", entries[0].RecipientUsername)
	assert.NotEmpty(t, entries[0].TransferNo)

	msgs := store.outboxMessages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Payload, model.EventUserCreated)
}

func TestFundInsufficientBalance(t *testing.T) {
	svc, store := newTransferFixture(t)
	sub := seedSubAdmin(store, 100)

	user := &model.Account{UUID: "user-uuid-2", Username: "newuser02", Role: model.RoleUser}
	err := store.WithinTx(context.Background(), func(tx Store) error {
		return svc.Fund(context.Background(), tx, sub.ID, user, 150)
	})
	require.ErrorIs(t, err, ErrBalanceNotEnough)

	// 任何一侧都不能有残留变化
	assert.Equal(t, float64(100), store.account(sub.ID).Balance)
	assert.Zero(t, user.ID)
	assert.Empty(t, store.ledgerOf(sub.ID))
	assert.Empty(t, store.outboxMessages())
}

func TestFundExistingUserEpochReset(t *testing.T) {
	svc, store := newTransferFixture(t)
	sub := seedSubAdmin(store, 500)
	user := store.put(&model.Account{
		UUID:           "user-uuid-3",
		Username:       "olduser01",
		Role:           model.RoleUser,
		CreatedBy:      sub.ID,
		Credit:         10,
		Balance:        40,
		InitialBalance: 10,
	})
	store.addGame(user.ID)
	store.addGame(user.ID)

	err := store.WithinTx(context.Background(), func(tx Store) error {
		fresh, err := tx.AccountForUpdate(context.Background(), user.ID)
		if err != nil {
			return err
		}
		if err := svc.Fund(context.Background(), tx, sub.ID, fresh, 60); err != nil {
			return err
		}
		return tx.SaveAccount(context.Background(), fresh)
	})
	require.NoError(t, err)

	got := store.account(user.ID)
	// 再充值是"充入"不是"设置"：balance 累加，基准余额重置为新余额
	assert.Equal(t, float64(60), got.Credit)
	assert.Equal(t, float64(100), got.Balance)
	assert.Equal(t, float64(100), got.InitialBalance)
	assert.Equal(t, float64(440), store.account(sub.ID).Balance)
	// 新的用量周期从零开始
	assert.Empty(t, store.gamesOf(user.ID))

	msgs := store.outboxMessages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Payload, model.EventUserFunded)
}

func TestFundRollsBackOnStoreFailure(t *testing.T) {
	svc, store := newTransferFixture(t)
	sub := seedSubAdmin(store, 500)
	store.failNext("AppendLedger")

	user := &model.Account{UUID: "user-uuid-4", Username: "newuser04", Role: model.RoleUser}
	err := store.WithinTx(context.Background(), func(tx Store) error {
		return svc.Fund(context.Background(), tx, sub.ID, user, 200)
	})
	require.Error(t, err)

	// 扣款已执行但事务回滚，余额必须恢复
	assert.Equal(t, float64(500), store.account(sub.ID).Balance)
	assert.Empty(t, store.ledgerOf(sub.ID))
	assert.Empty(t, store.outboxMessages())
}

func TestFundConcurrentTransfersNoOverdraw(t *testing.T) {
	svc, store := newTransferFixture(t)
	sub := seedSubAdmin(store, 100)
	u1 := store.put(&model.Account{UUID: "cu-1", Username: "concuser01", Role: model.RoleUser, CreatedBy: sub.ID})
	u2 := store.put(&model.Account{UUID: "cu-2", Username: "concuser02", Role: model.RoleUser, CreatedBy: sub.ID})

	// 两笔 80 的并发转账只能成功一笔
	results := make([]error, 2)
	var wg sync.WaitGroup
	for i, target := range []*model.Account{u1, u2} {
		wg.Add(1)
		go func(i int, targetID int64) {
			defer wg.Done()
			results[i] = store.WithinTx(context.Background(), func(tx Store) error {
				fresh, err := tx.AccountForUpdate(context.Background(), targetID)
				if err != nil {
					return err
				}
				if err := svc.Fund(context.Background(), tx, sub.ID, fresh, 80); err != nil {
					return err
				}
				return tx.SaveAccount(context.Background(), fresh)
			})
		}(i, target.ID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrBalanceNotEnough)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, float64(20), store.account(sub.ID).Balance)
	assert.Len(t, store.ledgerOf(sub.ID), 1)
}

func TestTopUpSubAdminClearsLedger(t *testing.T) {
	svc, store := newTransferFixture(t)
	sub := seedSubAdmin(store, 300)
	require.NoError(t, store.AppendLedger(context.Background(), &model.LedgerEntry{
		SubAdminID: sub.ID, TransferNo: "TRF-old", Amount: -50, RecipientUsername: "someuser01",
	}))

	err := store.WithinTx(context.Background(), func(tx Store) error {
		fresh, err := tx.AccountForUpdate(context.Background(), sub.ID)
		if err != nil {
			return err
		}
		if err := svc.TopUpSubAdmin(context.Background(), tx, fresh, 100); err != nil {
			return err
		}
		return tx.SaveAccount(context.Background(), fresh)
	})
	require.NoError(t, err)

	got := store.account(sub.ID)
	assert.Equal(t, float64(100), got.Credit)
	assert.Equal(t, float64(400), got.Balance)
	// 流水只追踪上次充值以来的支出，充值后整段清空
	assert.Empty(t, store.ledgerOf(sub.ID))

	msgs := store.outboxMessages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Payload, model.EventSubAdminTopUp)
}

func TestFundLedgerOrder(t *testing.T) {
	svc, store := newTransferFixture(t)
	sub := seedSubAdmin(store, 1000)

	recipients := []string{"orderuser01", "orderuser02", "orderuser03"}
	for i, name := range recipients {
		user := &model.Account{UUID: name, Username: name, Role: model.RoleUser}
		err := store.WithinTx(context.Background(), func(tx Store) error {
			return svc.Fund(context.Background(), tx, sub.ID, user, float64(10*(i+1)))
		})
		require.NoError(t, err)
	}

	entries := store.ledgerOf(sub.ID)
	require.Len(t, entries, 3)
	for i, name := range recipients {
		assert.Equal(t, name, entries[i].RecipientUsername)
		assert.Equal(t, float64(-10*(i+1)), entries[i].Amount)
	}
}
