package service

import (
	"context"
	"errors"
	"sync"

	"creditdesk/internal/model"
)

// fakeStore 内存版 Store：WithinTx 整体持锁 + 快照回滚，
// 模拟存储层"同一 subadmin 的检查与扣减串行化"的隔离语义
type fakeStore struct {
	mu sync.Mutex
	s  *fakeState
}

type fakeState struct {
	accounts map[int64]*model.Account
	ledger   []*model.LedgerEntry
	games    []*model.GameRecord
	outbox   []*model.OutboxMessage
	nextID   int64

	failOn string // 指定方法名注入存储故障
}

func newFakeStore() *fakeStore {
	return &fakeStore{s: &fakeState{accounts: map[int64]*model.Account{}}}
}

func (f *fakeStore) put(a *model.Account) *model.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == 0 {
		f.s.nextID++
		a.ID = f.s.nextID
	}
	cp := *a
	f.s.accounts[a.ID] = &cp
	return a
}

func (f *fakeStore) account(id int64) *model.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.s.accounts[id]
	return &cp
}

func (f *fakeStore) addGame(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.games = append(f.s.games, &model.GameRecord{UserID: userID, GameID: "bingo"})
}

func (f *fakeStore) gamesOf(userID int64) []*model.GameRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.GameRecord
	for _, g := range f.s.games {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out
}

func (f *fakeStore) ledgerOf(subAdminID int64) []*model.LedgerEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.LedgerEntry
	for _, e := range f.s.ledger {
		if e.SubAdminID == subAdminID {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeStore) outboxMessages() []*model.OutboxMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.OutboxMessage{}, f.s.outbox...)
}

func (f *fakeStore) failNext(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.failOn = method
}

func (s *fakeState) clone() *fakeState {
	cp := &fakeState{
		accounts: make(map[int64]*model.Account, len(s.accounts)),
		nextID:   s.nextID,
		failOn:   s.failOn,
	}
	for id, a := range s.accounts {
		ac := *a
		cp.accounts[id] = &ac
	}
	for _, e := range s.ledger {
		ec := *e
		cp.ledger = append(cp.ledger, &ec)
	}
	for _, g := range s.games {
		gc := *g
		cp.games = append(cp.games, &gc)
	}
	for _, m := range s.outbox {
		mc := *m
		cp.outbox = append(cp.outbox, &mc)
	}
	return cp
}

// ---- service.Store ----

func (f *fakeStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.s.clone()
	if err := fn(f.s); err != nil {
		*f.s = *snap
		return err
	}
	return nil
}

func (f *fakeStore) CreateAccount(ctx context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.CreateAccount(ctx, a)
}

func (f *fakeStore) SaveAccount(ctx context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.SaveAccount(ctx, a)
}

func (f *fakeStore) AccountByID(ctx context.Context, id int64) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.AccountByID(ctx, id)
}

func (f *fakeStore) AccountByUUID(ctx context.Context, uuid string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.AccountByUUID(ctx, uuid)
}

func (f *fakeStore) AccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.AccountByUsername(ctx, username)
}

func (f *fakeStore) AccountForUpdate(ctx context.Context, id int64) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.AccountForUpdate(ctx, id)
}

func (f *fakeStore) DebitBalance(ctx context.Context, id int64, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.DebitBalance(ctx, id, amount)
}

func (f *fakeStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.UsernameTaken(ctx, username)
}

func (f *fakeStore) NameTaken(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.NameTaken(ctx, name)
}

func (f *fakeStore) AppendLedger(ctx context.Context, e *model.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.AppendLedger(ctx, e)
}

func (f *fakeStore) ClearLedger(ctx context.Context, subAdminID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.ClearLedger(ctx, subAdminID)
}

func (f *fakeStore) LedgerBySubAdmin(ctx context.Context, subAdminID int64) ([]*model.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.LedgerBySubAdmin(ctx, subAdminID)
}

func (f *fakeStore) ClearGames(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.ClearGames(ctx, userID)
}

func (f *fakeStore) AppendOutbox(ctx context.Context, m *model.OutboxMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s.AppendOutbox(ctx, m)
}

// ---- 事务内视图（fakeState 同样实现 Store，锁已由 WithinTx 持有）----

var errInjected = errors.New("注入的存储故障")

func (s *fakeState) fail(method string) bool {
	return s.failOn == method
}

func (s *fakeState) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(s)
}

func (s *fakeState) CreateAccount(_ context.Context, a *model.Account) error {
	if s.fail("CreateAccount") {
		return errInjected
	}
	s.nextID++
	a.ID = s.nextID
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *fakeState) SaveAccount(_ context.Context, a *model.Account) error {
	if s.fail("SaveAccount") {
		return errInjected
	}
	if _, ok := s.accounts[a.ID]; !ok {
		return ErrAccountNotFound
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *fakeState) AccountByID(_ context.Context, id int64) (*model.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeState) AccountByUUID(_ context.Context, uuid string) (*model.Account, error) {
	for _, a := range s.accounts {
		if a.UUID == uuid {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (s *fakeState) AccountByUsername(_ context.Context, username string) (*model.Account, error) {
	for _, a := range s.accounts {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (s *fakeState) AccountForUpdate(ctx context.Context, id int64) (*model.Account, error) {
	return s.AccountByID(ctx, id)
}

func (s *fakeState) DebitBalance(_ context.Context, id int64, amount float64) error {
	if s.fail("DebitBalance") {
		return errInjected
	}
	a, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if a.Balance < amount {
		return ErrBalanceNotEnough
	}
	a.Balance -= amount
	return nil
}

func (s *fakeState) UsernameTaken(_ context.Context, username string) (bool, error) {
	for _, a := range s.accounts {
		if a.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeState) NameTaken(_ context.Context, name string) (bool, error) {
	for _, a := range s.accounts {
		if a.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeState) AppendLedger(_ context.Context, e *model.LedgerEntry) error {
	if s.fail("AppendLedger") {
		return errInjected
	}
	cp := *e
	cp.ID = int64(len(s.ledger) + 1)
	s.ledger = append(s.ledger, &cp)
	return nil
}

func (s *fakeState) ClearLedger(_ context.Context, subAdminID int64) error {
	var kept []*model.LedgerEntry
	for _, e := range s.ledger {
		if e.SubAdminID != subAdminID {
			kept = append(kept, e)
		}
	}
	s.ledger = kept
	return nil
}

func (s *fakeState) LedgerBySubAdmin(_ context.Context, subAdminID int64) ([]*model.LedgerEntry, error) {
	var out []*model.LedgerEntry
	for _, e := range s.ledger {
		if e.SubAdminID == subAdminID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeState) ClearGames(_ context.Context, userID int64) error {
	if s.fail("ClearGames") {
		return errInjected
	}
	var kept []*model.GameRecord
	for _, g := range s.games {
		if g.UserID != userID {
			kept = append(kept, g)
		}
	}
	s.games = kept
	return nil
}

func (s *fakeState) AppendOutbox(_ context.Context, m *model.OutboxMessage) error {
	if s.fail("AppendOutbox") {
		return errInjected
	}
	cp := *m
	cp.ID = int64(len(s.outbox) + 1)
	s.outbox = append(s.outbox, &cp)
	return nil
}

// noopLocker 测试用锁：并发正确性由 fakeStore 的事务互斥保证
type noopLocker struct{}

func (noopLocker) Acquire(ctx context.Context, subAdminID int64, token string) (func(context.Context), error) {
	return func(context.Context) {}, nil
}
