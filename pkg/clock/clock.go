package clock

import (
	"fmt"
	"time"
)

// 审计字段统一使用 12 小时制格式串，如 2024-01-15 02:30:52 PM
const StampLayout = "2006-01-02 03:04:05 PM"

// Clock 固定时区时钟
// 所有审计时间戳（充值时间、流水日期）都经由它生成，
// 时区来自启动配置，不在代码里写死
type Clock struct {
	loc *time.Location
}

// New 按 IANA 时区名创建时钟
func New(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("加载时区失败: %w", err)
	}
	return &Clock{loc: loc}, nil
}

// Now 当前时刻（固定时区）
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Stamp 当前时刻的审计格式串
func (c *Clock) Stamp() string {
	return c.Now().Format(StampLayout)
}
