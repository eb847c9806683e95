package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"creditdesk/internal/auth"
	"creditdesk/internal/model"
	"creditdesk/internal/validation"
)

// UpdateResult 一次变更请求的分区结果：成功应用的字段 + 逐字段错误
type UpdateResult struct {
	Applied []string
	Errors  []string
}

func (r UpdateResult) OK() bool {
	return len(r.Errors) == 0
}

type fieldApplier func(ctx context.Context, tx Store, caller, target *model.Account, raw string) error

// MutationEngine 字段变更引擎
//
// 按目标账户角色查允许字段表，逐字段独立校验：
// 无效字段记一条错误、有效字段应用到内存文档，最终是否落库由调用方决定
// （信用字段走转账协议，要求零错误才提交）。
// 三种角色共用同一张 applier 表，不再按路由各写一份 switch
type MutationEngine struct {
	transfer *TransferService
	allowed  map[string]map[string]fieldApplier // 目标角色 -> 字段名 -> applier
}

func NewMutationEngine(transfer *TransferService) *MutationEngine {
	e := &MutationEngine{transfer: transfer}

	base := map[string]fieldApplier{
		"name":     e.applyName,
		"username": e.applyUsername,
		"password": e.applyPassword,
		"state":    e.applyState,
	}
	withCredit := map[string]fieldApplier{}
	for k, v := range base {
		withCredit[k] = v
	}
	withCredit["credit"] = e.applyCredit

	e.allowed = map[string]map[string]fieldApplier{
		model.RoleAdmin:    base, // admin 之间不存在额度划拨
		model.RoleSubAdmin: withCredit,
		model.RoleUser:     withCredit,
	}
	return e
}

// Apply 将一组提议的字段变更应用到目标账户（内存中）
// 字段按名称排序处理，保证同一请求结果可重复
func (e *MutationEngine) Apply(ctx context.Context, tx Store, caller, target *model.Account, updates map[string]string) UpdateResult {
	fields := make([]string, 0, len(updates))
	for k := range updates {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	appliers := e.allowed[target.Role]

	var result UpdateResult
	for _, field := range fields {
		applier, ok := appliers[field]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: 不允许修改该字段", field))
			continue
		}
		if err := applier(ctx, tx, caller, target, updates[field]); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", field, err.Error()))
			continue
		}
		result.Applied = append(result.Applied, field)
	}
	return result
}

func (e *MutationEngine) applyName(ctx context.Context, tx Store, _, target *model.Account, raw string) error {
	v, err := validation.Name(raw)
	if err != nil {
		return err
	}
	// 全局唯一，区分大小写；不豁免账户自身的当前值
	taken, err := tx.NameTaken(ctx, v)
	if err != nil {
		return err
	}
	if taken {
		return errors.New("该名称已被占用")
	}
	target.Name = v
	return nil
}

func (e *MutationEngine) applyUsername(ctx context.Context, tx Store, _, target *model.Account, raw string) error {
	v, err := validation.Username(raw)
	if err != nil {
		return err
	}
	taken, err := tx.UsernameTaken(ctx, v)
	if err != nil {
		return err
	}
	if taken {
		return errors.New("该用户名已被占用")
	}
	target.Username = v
	return nil
}

func (e *MutationEngine) applyPassword(_ context.Context, _ Store, _, target *model.Account, raw string) error {
	v, err := validation.Password(raw)
	if err != nil {
		return err
	}
	// 通过哈希比对判断是否与当前密码相同，不做明文比较
	if auth.ComparePassword(v, target.Password) {
		return errors.New("新密码不能与当前密码相同")
	}
	digest, err := auth.HashPassword(v)
	if err != nil {
		return err
	}
	target.Password = digest
	return nil
}

func (e *MutationEngine) applyState(_ context.Context, _ Store, _, target *model.Account, raw string) error {
	v, err := validation.State(raw)
	if err != nil {
		return err
	}
	target.State = v
	return nil
}

func (e *MutationEngine) applyCredit(ctx context.Context, tx Store, caller, target *model.Account, raw string) error {
	amount, err := validation.Credit(raw)
	if err != nil {
		return err
	}
	switch target.Role {
	case model.RoleSubAdmin:
		return e.transfer.TopUpSubAdmin(ctx, tx, target, amount)
	case model.RoleUser:
		return e.transfer.Fund(ctx, tx, caller.ID, target, amount)
	default:
		return errors.New("该账户不支持额度变更")
	}
}
