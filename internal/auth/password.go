package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// bcrypt 成本因子，沿用线上既有哈希的强度
const hashCost = 12

// HashPassword 对明文密码加盐哈希
func HashPassword(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), hashCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// ComparePassword 比对明文与哈希，核心逻辑永不直接比较明文
func ComparePassword(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
