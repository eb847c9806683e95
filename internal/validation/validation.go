package validation

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"creditdesk/internal/model"
)

// ============================================================================
// 字段格式校验
// ============================================================================
//
// 这里只做纯格式校验（长度、字符集、数值范围），不查库；
// 唯一性检查属于存储层关注点，由服务层在同一工作单元内完成
// ============================================================================

const (
	minLength = 8
	maxLength = 20
)

var (
	// 只允许字母和数字
	invalidChars = regexp.MustCompile(`[^a-zA-Z0-9]`)
	hasUpper     = regexp.MustCompile(`[A-Z]`)
	hasLower     = regexp.MustCompile(`[a-z]`)
	hasDigit     = regexp.MustCompile(`[0-9]`)

	// 弱密码黑名单
	commonPasswords = map[string]bool{
		"password": true,
		"12345678": true,
		"qwertyui": true,
		"admin123": true,
	}
)

// hasConsecutiveRun 是否存在 3 个及以上相同的连续字符
func hasConsecutiveRun(s string) bool {
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// validateIdentifier name 和 username 共用的规则：8-20 位、仅字母数字、无连续重复
func validateIdentifier(raw, label string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New(label + "不能为空")
	}
	if len(trimmed) < minLength {
		return "", errors.New(label + "长度不能少于 " + strconv.Itoa(minLength) + " 个字符")
	}
	if len(trimmed) > maxLength {
		return "", errors.New(label + "长度不能超过 " + strconv.Itoa(maxLength) + " 个字符")
	}
	if invalidChars.MatchString(trimmed) {
		return "", errors.New(label + "只能包含字母和数字")
	}
	if hasConsecutiveRun(trimmed) {
		return "", errors.New(label + "包含无效的连续重复字符")
	}
	return trimmed, nil
}

// Name 校验显示名
func Name(raw string) (string, error) {
	return validateIdentifier(raw, "名称")
}

// Username 校验登录名
func Username(raw string) (string, error) {
	return validateIdentifier(raw, "用户名")
}

// Password 校验密码格式（8-20 位字母数字，须同时含大写、小写和数字）
func Password(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("密码不能为空")
	}
	if len(raw) < minLength {
		return "", errors.New("密码长度不能少于 " + strconv.Itoa(minLength) + " 个字符")
	}
	if len(raw) > maxLength {
		return "", errors.New("密码长度不能超过 " + strconv.Itoa(maxLength) + " 个字符")
	}
	if invalidChars.MatchString(raw) {
		return "", errors.New("密码只能包含字母和数字")
	}
	if commonPasswords[strings.ToLower(raw)] {
		return "", errors.New("密码过于常见")
	}
	if !hasUpper.MatchString(raw) {
		return "", errors.New("密码必须包含至少一个大写字母")
	}
	if !hasLower.MatchString(raw) {
		return "", errors.New("密码必须包含至少一个小写字母")
	}
	if !hasDigit.MatchString(raw) {
		return "", errors.New("密码必须包含至少一个数字")
	}
	return raw, nil
}

// Credit 校验充值额度（非负有限数）
func Credit(raw string) (float64, error) {
	num, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, errors.New("额度必须是数字")
	}
	if num < 0 {
		return 0, errors.New("额度不能为负数")
	}
	return num, nil
}

// Commission 校验佣金比例（0-100）
func Commission(raw string) (float64, error) {
	num, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, errors.New("佣金必须是数字")
	}
	if num < 0 || num > 100 {
		return 0, errors.New("佣金必须在 0 到 100 之间")
	}
	return num, nil
}

// State 校验账户状态，只接受 active / suspended
func State(raw string) (string, error) {
	if raw != model.StateActive && raw != model.StateSuspended {
		return "", errors.New("状态只能是 active 或 suspended")
	}
	return raw, nil
}
