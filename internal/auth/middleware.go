package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"creditdesk/internal/model"
)

const contextKeyAccount = "auth.account"

// AccountLoader 鉴权所需的最小存储接口
type AccountLoader interface {
	AccountByID(ctx context.Context, id int64) (*model.Account, error)
}

// CookieOptions 会话 Cookie 配置
type CookieOptions struct {
	Name   string
	Secure bool
}

// Gate 授权门卫：凭证 -> 存活且未停用的指定角色账户
type Gate struct {
	tokens *TokenManager
	loader AccountLoader
	cookie CookieOptions
}

func NewGate(tokens *TokenManager, loader AccountLoader, cookie CookieOptions) *Gate {
	return &Gate{tokens: tokens, loader: loader, cookie: cookie}
}

// SetCookie 登录成功后写入会话 Cookie
func (g *Gate) SetCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(g.cookie.Name, token, maxAge, "/", "", g.cookie.Secure, true)
}

func (g *Gate) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(g.cookie.Name, "", -1, "/", "", g.cookie.Secure, true)
}

// RequireRole 角色鉴权中间件
//
// 【关键点】所有失败一律清除 Cookie 并返回同一个"请重新登录"响应，
// 不向调用方泄露失败原因（凭证损坏 / 账户停用 / 角色不符，外部表现一致）
func (g *Gate) RequireRole(expectedRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(g.cookie.Name)
		if err != nil || token == "" {
			g.reject(c)
			return
		}

		identity, err := g.tokens.Verify(token)
		if err != nil {
			g.reject(c)
			return
		}

		account, err := g.loader.AccountByID(c.Request.Context(), identity.AccountID)
		if err != nil || account == nil {
			g.reject(c)
			return
		}
		if account.Suspended() || account.Role != identity.Role || identity.Role != expectedRole {
			g.reject(c)
			return
		}

		c.Set(contextKeyAccount, account)
		c.Next()
	}
}

func (g *Gate) reject(c *gin.Context) {
	g.clearCookie(c)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    http.StatusUnauthorized,
		"message": "请重新登录",
	})
}

// CurrentAccount 取出中间件放入的调用方账户
func CurrentAccount(c *gin.Context) *model.Account {
	v, ok := c.Get(contextKeyAccount)
	if !ok {
		return nil
	}
	account, _ := v.(*model.Account)
	return account
}
