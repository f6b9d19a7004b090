package symbol

import "strings"

// quoteAssets 按匹配优先级排列，长后缀在前。
var quoteAssets = []string{"USDT", "BUSD", "USDC", "TUSD", "FDUSD", "BTC", "ETH", "BNB"}

// Pair 是一个加密货币交易对。
type Pair struct {
	Base  string
	Quote string
}

// Display 返回 BASE/QUOTE 写法；任一部分缺失时为空。
func (p Pair) Display() string {
	if p.Base == "" || p.Quote == "" {
		return ""
	}
	return p.Base + "/" + p.Quote
}

// Compact 返回交易所使用的 BASEQUOTE 写法。
func (p Pair) Compact() string {
	if p.Base == "" || p.Quote == "" {
		return ""
	}
	return p.Base + p.Quote
}

func (p Pair) Valid() bool {
	return p.Base != "" && p.Quote != ""
}

// Parse 识别 BTC/USDT、BTCUSDT、BTC/USDT:USDT 等写法。
func Parse(s string) Pair {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Pair{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if base, quote, ok := strings.Cut(s, "/"); ok {
		return Pair{Base: strings.TrimSpace(base), Quote: strings.TrimSpace(quote)}
	}
	for _, quote := range quoteAssets {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Pair{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Pair{}
}

// Compact 把任意写法转换成交易所代码；无法识别时去掉分隔符后原样返回。
func Compact(s string) string {
	if p := Parse(s); p.Valid() {
		return p.Compact()
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	return strings.ReplaceAll(s, "/", "")
}
