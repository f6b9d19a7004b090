package app

import (
	"fmt"
	"strings"
	"time"

	"papersim/internal/logger"
)

type StartupSummary struct {
	Env             string
	HTTPAddr        string
	Origins         []string
	Source          string
	Timeframes      []string
	TickInterval    time.Duration
	StartingBalance float64
	Cache           string
	Journal         string
	Symbols         string
	ConfigFiles     []string
}

func (s *StartupSummary) String() string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	line := strings.Repeat("=", 60)
	b.WriteString(line + "\n")
	b.WriteString("启动配置摘要 (STARTUP SUMMARY)\n")
	b.WriteString(line + "\n")

	b.WriteString("[服务 (SERVER)]\n")
	fmt.Fprintf(&b, "  环境: %s\n", orDash(s.Env))
	fmt.Fprintf(&b, "  监听: %s\n", orDash(s.HTTPAddr))
	fmt.Fprintf(&b, "  CORS: %s\n", formatList(s.Origins))
	fmt.Fprintf(&b, "  配置文件: %s\n", formatList(s.ConfigFiles))

	b.WriteString("[行情 (MARKET)]\n")
	fmt.Fprintf(&b, "  数据源: %s\n", orDash(s.Source))
	fmt.Fprintf(&b, "  周期回退: %s\n", formatList(s.Timeframes))
	fmt.Fprintf(&b, "  代码搜索: %s\n", orDash(s.Symbols))
	fmt.Fprintf(&b, "  K 线缓存: %s\n", disabledIfEmpty(s.Cache))

	b.WriteString("[回放 (REPLAY)]\n")
	fmt.Fprintf(&b, "  节拍: %s\n", s.TickInterval)
	fmt.Fprintf(&b, "  初始资金: %.2f\n", s.StartingBalance)
	fmt.Fprintf(&b, "  审计日志: %s\n", disabledIfEmpty(s.Journal))
	b.WriteString(line)
	return b.String()
}

func (s *StartupSummary) Print() {
	logger.InfoBlock(s.String())
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func disabledIfEmpty(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(关闭)"
	}
	return v
}
