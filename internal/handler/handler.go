package handler

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"

	"creditdesk/internal/auth"
	"creditdesk/internal/model"
	"creditdesk/internal/service"
	"creditdesk/pkg/response"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accounts *service.AccountService
	gate     *auth.Gate
	tokenTTL int // Cookie 有效期（秒）
}

func NewHandler(accounts *service.AccountService, gate *auth.Gate, tokenTTLSeconds int) *Handler {
	return &Handler{
		accounts: accounts,
		gate:     gate,
		tokenTTL: tokenTTLSeconds,
	}
}

// writeServiceError 服务层错误到响应的统一映射
// 事务层故障只回笼统的内部错误，不泄露细节
func writeServiceError(c *gin.Context, err error) {
	var ferrs service.FieldErrors
	var rej *service.Rejection
	switch {
	case errors.As(err, &ferrs):
		response.FieldErrors(c, ferrs)
	case errors.As(err, &rej):
		response.BusinessError(c, response.CodeFieldRejected, rej.Reason)
	case errors.Is(err, service.ErrBalanceNotEnough):
		response.BusinessError(c, response.CodeBalanceNotEnough, "余额不足")
	case errors.Is(err, service.ErrAccountNotFound):
		response.NotFound(c, "账户不存在")
	default:
		log.Printf("[Handler] 内部错误: %v", err)
		response.ServerError(c)
	}
}

// ============================================================
// 登录
// ============================================================

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录并写入会话 Cookie
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	token, account, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrLoginFailed) {
			response.Error(c, 401, response.CodeLoginFailed, "用户名或密码错误")
			return
		}
		writeServiceError(c, err)
		return
	}

	h.gate.SetCookie(c, token, h.tokenTTL)
	response.Success(c, gin.H{
		"uuid": account.UUID,
		"role": account.Role,
	})
}

// ============================================================
// 账户创建接口（上级建下级）
// ============================================================

// SignUpAdmin admin 创建 admin
// POST /api/v1/signup/admin
func (h *Handler) SignUpAdmin(c *gin.Context) {
	var in service.CreateAdminInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.ParamError(c, "缺少必填字段")
		return
	}

	caller := auth.CurrentAccount(c)
	if err := h.accounts.CreateAdmin(c.Request.Context(), caller, in); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Created(c, "admin 账户创建成功")
}

// SignUpSubAdmin admin 创建 subadmin
// POST /api/v1/signup/subadmin
func (h *Handler) SignUpSubAdmin(c *gin.Context) {
	var in service.CreateSubAdminInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.ParamError(c, "缺少必填字段")
		return
	}

	caller := auth.CurrentAccount(c)
	if err := h.accounts.CreateSubAdmin(c.Request.Context(), caller, in); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Created(c, "subadmin 账户创建成功")
}

// SignUpUser subadmin 创建 user（从自身余额注资）
// POST /api/v1/signup/user
//
// 【关键点】建号是整个系统最核心的写操作之一，必须保证：
// 1. 原子性：user 落库与 subadmin 扣款同时成功或同时失败
// 2. 并发安全：同一 subadmin 的并发建号经分布式锁与行锁串行化
func (h *Handler) SignUpUser(c *gin.Context) {
	var in service.CreateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.ParamError(c, "缺少必填字段")
		return
	}

	caller := auth.CurrentAccount(c)
	if err := h.accounts.CreateUser(c.Request.Context(), caller, in); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Created(c, "user 账户创建成功")
}

// ============================================================
// 账户变更接口（上级改下级）
// ============================================================

func (h *Handler) updateAccount(c *gin.Context, targetRole string) {
	var updates map[string]string
	if err := c.ShouldBindJSON(&updates); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	caller := auth.CurrentAccount(c)
	err := h.accounts.UpdateAccount(c.Request.Context(), caller, targetRole, c.Param("uuid"), updates)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "账户更新成功"})
}

// UpdateAdmin PUT /api/v1/account/admin/:uuid
func (h *Handler) UpdateAdmin(c *gin.Context) {
	h.updateAccount(c, model.RoleAdmin)
}

// UpdateSubAdmin PUT /api/v1/account/subadmin/:uuid
func (h *Handler) UpdateSubAdmin(c *gin.Context) {
	h.updateAccount(c, model.RoleSubAdmin)
}

// UpdateUser PUT /api/v1/account/user/:uuid
func (h *Handler) UpdateUser(c *gin.Context) {
	h.updateAccount(c, model.RoleUser)
}

// ============================================================
// subadmin 视图
// ============================================================

// GetBalance 查询自身余额
// GET /api/v1/account/balance
func (h *Handler) GetBalance(c *gin.Context) {
	caller := auth.CurrentAccount(c)
	response.Success(c, gin.H{
		"credit":           caller.Credit,
		"balance":          caller.Balance,
		"last_credit_time": caller.LastCreditTime,
	})
}

// GetHistory 查询当前充值周期内的支出流水
// GET /api/v1/account/history
func (h *Handler) GetHistory(c *gin.Context) {
	caller := auth.CurrentAccount(c)
	entries, err := h.accounts.History(c.Request.Context(), caller.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":  entries,
		"total": len(entries),
	})
}

// ============================================================
// 自助维护接口（user 改自己）
// ============================================================

// GetProfile GET /api/v1/profile
func (h *Handler) GetProfile(c *gin.Context) {
	caller := auth.CurrentAccount(c)
	account, err := h.accounts.Profile(c.Request.Context(), caller.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"name":            account.Name,
		"username":        account.Username,
		"shop_name":       account.ShopName,
		"user_commission": account.UserCommission,
		"balance":         account.Balance,
	})
}

// ChangeUsername POST /api/v1/profile/username
func (h *Handler) ChangeUsername(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	caller := auth.CurrentAccount(c)
	newUsername, err := h.accounts.ChangeUsername(c.Request.Context(), caller.ID, req.Username)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"message":      "用户名更新成功",
		"new_username": newUsername,
	})
}

// ChangeName POST /api/v1/profile/name
func (h *Handler) ChangeName(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	caller := auth.CurrentAccount(c)
	newName, err := h.accounts.ChangeName(c.Request.Context(), caller.ID, req.Name)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"message":  "名称更新成功",
		"new_name": newName,
	})
}

// ChangePassword POST /api/v1/profile/password
func (h *Handler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
		ConfirmPassword string `json:"confirm_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	caller := auth.CurrentAccount(c)
	err := h.accounts.ChangePassword(c.Request.Context(), caller.ID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "密码更新成功"})
}

// ChangeCommission POST /api/v1/profile/commission
func (h *Handler) ChangeCommission(c *gin.Context) {
	var req struct {
		Commission string `json:"commission" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	caller := auth.CurrentAccount(c)
	newCommission, err := h.accounts.ChangeCommission(c.Request.Context(), caller.ID, req.Commission)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"new_commission": newCommission,
	})
}
