package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"creditdesk/internal/model"
)

var ErrInvalidToken = errors.New("凭证无效")

// Identity 凭证解出的身份声明
type Identity struct {
	AccountID int64
	Role      string
}

type tokenClaims struct {
	AccountID int64  `json:"account_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager 凭证签发与校验（HS256）
// 密钥与有效期来自启动配置，代码内不留缺省密钥
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue 签发凭证
func (m *TokenManager) Issue(accountID int64, role string) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		AccountID: accountID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify 校验凭证并解出身份
// 无法解码、签名不符、角色缺失，一律返回 ErrInvalidToken，不区分原因
func (m *TokenManager) Verify(token string) (*Identity, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.AccountID == 0 || !validRole(claims.Role) {
		return nil, ErrInvalidToken
	}
	return &Identity{AccountID: claims.AccountID, Role: claims.Role}, nil
}

func validRole(role string) bool {
	return role == model.RoleAdmin || role == model.RoleSubAdmin || role == model.RoleUser
}
