package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"creditdesk/internal/auth"
	"creditdesk/internal/model"
	"creditdesk/internal/validation"
	"creditdesk/pkg/clock"
)

var ErrLoginFailed = errors.New("用户名或密码错误")

// AccountService 账户创建 / 变更 / 自助维护
type AccountService struct {
	store    Store
	tokens   *auth.TokenManager
	transfer *TransferService
	engine   *MutationEngine
	clock    *clock.Clock
}

func NewAccountService(store Store, tokens *auth.TokenManager, transfer *TransferService, clk *clock.Clock) *AccountService {
	return &AccountService{
		store:    store,
		tokens:   tokens,
		transfer: transfer,
		engine:   NewMutationEngine(transfer),
		clock:    clk,
	}
}

// ============================================================
// 登录
// ============================================================

// Login 校验用户名密码并签发凭证
// 账户不存在 / 密码错误 / 账户停用，一律返回同一个错误，不泄露原因
func (s *AccountService) Login(ctx context.Context, username, password string) (string, *model.Account, error) {
	account, err := s.store.AccountByUsername(ctx, username)
	if err != nil || account == nil {
		return "", nil, ErrLoginFailed
	}
	if account.Suspended() || !auth.ComparePassword(password, account.Password) {
		return "", nil, ErrLoginFailed
	}
	token, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		return "", nil, fmt.Errorf("签发凭证失败: %w", err)
	}
	return token, account, nil
}

// ============================================================
// 账户创建（上级建下级）
// ============================================================

type CreateAdminInput struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CreateSubAdminInput struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Credit   string `json:"credit" binding:"required"`
}

type CreateUserInput struct {
	Name            string `json:"name" binding:"required"`
	Username        string `json:"username" binding:"required"`
	Password        string `json:"password" binding:"required"`
	Credit          string `json:"credit" binding:"required"`
	UserCommission  string `json:"user_commission" binding:"required"`
	OwnerCommission string `json:"owner_commission" binding:"required"`
}

// CreateAdmin admin 创建平级 admin 账户
func (s *AccountService) CreateAdmin(ctx context.Context, caller *model.Account, in CreateAdminInput) error {
	var errs FieldErrors
	name, err := validation.Name(in.Name)
	if err != nil {
		errs = append(errs, err.Error())
	}
	username, err := validation.Username(in.Username)
	if err != nil {
		errs = append(errs, err.Error())
	}
	password, err := validation.Password(in.Password)
	if err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return errs
	}

	digest, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("密码哈希失败: %w", err)
	}

	return s.store.WithinTx(ctx, func(tx Store) error {
		if err := s.checkUnique(ctx, tx, name, username); err != nil {
			return err
		}
		account := &model.Account{
			UUID:      uuid.NewString(),
			Name:      name,
			Username:  username,
			Password:  digest,
			Role:      model.RoleAdmin,
			State:     model.StateActive,
			CreatedBy: caller.ID,
		}
		return tx.CreateAccount(ctx, account)
	})
}

// CreateSubAdmin admin 创建 subadmin 并设定初始额度
// admin 自身不持有余额，初始额度不产生扣款
func (s *AccountService) CreateSubAdmin(ctx context.Context, caller *model.Account, in CreateSubAdminInput) error {
	var errs FieldErrors
	name, err := validation.Name(in.Name)
	if err != nil {
		errs = append(errs, err.Error())
	}
	username, err := validation.Username(in.Username)
	if err != nil {
		errs = append(errs, err.Error())
	}
	password, err := validation.Password(in.Password)
	if err != nil {
		errs = append(errs, err.Error())
	}
	credit, err := validation.Credit(in.Credit)
	if err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return errs
	}

	digest, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("密码哈希失败: %w", err)
	}

	return s.store.WithinTx(ctx, func(tx Store) error {
		if err := s.checkUnique(ctx, tx, name, username); err != nil {
			return err
		}
		account := &model.Account{
			UUID:           uuid.NewString(),
			Name:           name,
			Username:       username,
			Password:       digest,
			Role:           model.RoleSubAdmin,
			State:          model.StateActive,
			CreatedBy:      caller.ID,
			Credit:         credit,
			Balance:        credit,
			LastCreditTime: s.clock.Stamp(),
		}
		return tx.CreateAccount(ctx, account)
	})
}

// CreateUser subadmin 创建 user 并从自身余额注资
//
// 状态机：校验 -> 唯一性 -> 锁定余额 -> 扣款+建号同事务提交；
// 任何一步失败整体回滚，不留半成品账户
func (s *AccountService) CreateUser(ctx context.Context, caller *model.Account, in CreateUserInput) error {
	var errs FieldErrors
	name, err := validation.Name(in.Name)
	if err != nil {
		errs = append(errs, err.Error())
	}
	username, err := validation.Username(in.Username)
	if err != nil {
		errs = append(errs, err.Error())
	}
	password, err := validation.Password(in.Password)
	if err != nil {
		errs = append(errs, err.Error())
	}
	credit, err := validation.Credit(in.Credit)
	if err != nil {
		errs = append(errs, err.Error())
	}
	userComm, err := validation.Commission(in.UserCommission)
	if err != nil {
		errs = append(errs, err.Error())
	}
	ownerComm, err := validation.Commission(in.OwnerCommission)
	if err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return errs
	}

	digest, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("密码哈希失败: %w", err)
	}

	user := &model.Account{
		UUID:            uuid.NewString(),
		Name:            name,
		Username:        username,
		Password:        digest,
		Role:            model.RoleUser,
		State:           model.StateActive,
		CreatedBy:       caller.ID,
		ShopName:        name,
		UserCommission:  userComm,
		OwnerCommission: ownerComm,
	}

	release, err := s.transfer.LockSubAdmin(ctx, caller.ID, user.UUID)
	if err != nil {
		return err
	}
	defer release(ctx)

	return s.store.WithinTx(ctx, func(tx Store) error {
		if err := s.checkUnique(ctx, tx, name, username); err != nil {
			return err
		}
		return s.transfer.Fund(ctx, tx, caller.ID, user, credit)
	})
}

// checkUnique 用户名与显示名的全局唯一性检查（区分大小写，跨全部三种角色）
func (s *AccountService) checkUnique(ctx context.Context, tx Store, name, username string) error {
	var errs FieldErrors
	taken, err := tx.NameTaken(ctx, name)
	if err != nil {
		return err
	}
	if taken {
		errs = append(errs, "该名称已被占用")
	}
	taken, err = tx.UsernameTaken(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		errs = append(errs, "该用户名已被占用")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ============================================================
// 账户变更（上级改下级）
// ============================================================

// UpdateAccount 创建者对下级账户的字段变更入口
//
// 目标必须由 caller 本人创建；目标行加锁后交给变更引擎，
// 出现任何字段错误则整个事务回滚（包括已暂存的信用扣减）
func (s *AccountService) UpdateAccount(ctx context.Context, caller *model.Account, targetRole, targetUUID string, updates map[string]string) error {
	if len(updates) == 0 {
		return FieldErrors{"没有需要更新的字段"}
	}

	// user 的 credit 变更涉及 subadmin 扣款，先取转账锁
	if _, ok := updates["credit"]; ok && targetRole == model.RoleUser {
		release, err := s.transfer.LockSubAdmin(ctx, caller.ID, targetUUID)
		if err != nil {
			return err
		}
		defer release(ctx)
	}

	return s.store.WithinTx(ctx, func(tx Store) error {
		target, err := tx.AccountByUUID(ctx, targetUUID)
		if err != nil {
			return err
		}
		if target.Role != targetRole || target.CreatedBy != caller.ID {
			// 非本人创建的账户一律视作不存在，不泄露归属关系
			return ErrAccountNotFound
		}
		target, err = tx.AccountForUpdate(ctx, target.ID)
		if err != nil {
			return err
		}

		result := s.engine.Apply(ctx, tx, caller, target, updates)
		if !result.OK() {
			return FieldErrors(result.Errors)
		}
		return tx.SaveAccount(ctx, target)
	})
}

// ============================================================
// 自助维护（user 改自己）
// ============================================================

// Profile 当前用户档案
func (s *AccountService) Profile(ctx context.Context, userID int64) (*model.Account, error) {
	return s.store.AccountByID(ctx, userID)
}

// ChangeUsername 用户自助改登录名
func (s *AccountService) ChangeUsername(ctx context.Context, userID int64, raw string) (string, error) {
	v, err := validation.Username(raw)
	if err != nil {
		return "", reject(err.Error())
	}
	err = s.store.WithinTx(ctx, func(tx Store) error {
		user, err := tx.AccountForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		taken, err := tx.UsernameTaken(ctx, v)
		if err != nil {
			return err
		}
		if taken {
			return reject("该用户名已被占用")
		}
		user.Username = v
		return tx.SaveAccount(ctx, user)
	})
	if err != nil {
		return "", err
	}
	return v, nil
}

// ChangeName 用户自助改显示名
func (s *AccountService) ChangeName(ctx context.Context, userID int64, raw string) (string, error) {
	v, err := validation.Name(raw)
	if err != nil {
		return "", reject(err.Error())
	}
	err = s.store.WithinTx(ctx, func(tx Store) error {
		user, err := tx.AccountForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		taken, err := tx.NameTaken(ctx, v)
		if err != nil {
			return err
		}
		if taken {
			return reject("该名称已被占用")
		}
		user.Name = v
		return tx.SaveAccount(ctx, user)
	})
	if err != nil {
		return "", err
	}
	return v, nil
}

// ChangePassword 用户自助改密码，须先验证当前密码
func (s *AccountService) ChangePassword(ctx context.Context, userID int64, current, newPassword, confirm string) error {
	if current == "" || newPassword == "" || confirm == "" {
		return reject("密码字段不能为空")
	}
	if newPassword != confirm {
		return reject("两次输入的新密码不一致")
	}
	v, err := validation.Password(newPassword)
	if err != nil {
		return reject(err.Error())
	}

	return s.store.WithinTx(ctx, func(tx Store) error {
		user, err := tx.AccountForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if !auth.ComparePassword(current, user.Password) {
			return reject("当前密码不正确")
		}
		// 不论同请求还改了什么，新旧密码相同一律拒绝
		if auth.ComparePassword(v, user.Password) {
			return reject("新密码不能与当前密码相同")
		}
		digest, err := auth.HashPassword(v)
		if err != nil {
			return fmt.Errorf("密码哈希失败: %w", err)
		}
		user.Password = digest
		return tx.SaveAccount(ctx, user)
	})
}

// ChangeCommission 用户自助改自己的佣金比例
func (s *AccountService) ChangeCommission(ctx context.Context, userID int64, raw string) (float64, error) {
	v, err := validation.Commission(raw)
	if err != nil {
		return 0, reject(err.Error())
	}
	err = s.store.WithinTx(ctx, func(tx Store) error {
		user, err := tx.AccountForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		user.UserCommission = v
		return tx.SaveAccount(ctx, user)
	})
	if err != nil {
		return 0, err
	}
	return v, nil
}

// ============================================================
// subadmin 视图
// ============================================================

// History 当前充值周期内的支出流水（按提交顺序）
func (s *AccountService) History(ctx context.Context, subAdminID int64) ([]*model.LedgerEntry, error) {
	return s.store.LedgerBySubAdmin(ctx, subAdminID)
}
