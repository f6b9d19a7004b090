package symbols

import (
	"context"
	"sort"
	"strings"

	"papersim/internal/market"
)

// DefaultEntries 是未配置目录文件时使用的内置代码表。
var DefaultEntries = []market.SymbolMatch{
	{Symbol: "AAPL", Name: "Apple Inc."},
	{Symbol: "NVDA", Name: "NVIDIA Corporation"},
	{Symbol: "MSFT", Name: "Microsoft Corp."},
	{Symbol: "TSLA", Name: "Tesla Inc."},
}

// Static 是按代码前缀匹配的静态目录。
type Static struct {
	entries []market.SymbolMatch
}

// NewStatic 规范化并去重 entries，按代码排序。
func NewStatic(entries []market.SymbolMatch) *Static {
	seen := make(map[string]bool, len(entries))
	out := make([]market.SymbolMatch, 0, len(entries))
	for _, e := range entries {
		sym := market.NormalizeSymbol(e.Symbol)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, market.SymbolMatch{Symbol: sym, Name: strings.TrimSpace(e.Name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return &Static{entries: out}
}

func NewDefault() *Static {
	return NewStatic(DefaultEntries)
}

func (s *Static) Len() int { return len(s.entries) }

// SearchSymbols 返回代码以 query（大写）开头的条目；空查询返回空切片。
func (s *Static) SearchSymbols(_ context.Context, query string) ([]market.SymbolMatch, error) {
	q := market.NormalizeSymbol(query)
	out := make([]market.SymbolMatch, 0)
	if q == "" {
		return out, nil
	}
	for _, e := range s.entries {
		if strings.HasPrefix(e.Symbol, q) {
			out = append(out, e)
		}
	}
	return out, nil
}
