package exchange

import (
	"strings"
)

// SymbolConverter 符号转换接口
type SymbolConverter interface {
	// Symbol2Coin 将交易对转换为币种
	// 例: BTCUSDT -> BTC
	Symbol2Coin(symbol string) string

	// Coin2Symbol 将币种转换为交易对
	// 例: BTC -> BTCUSDT
	Coin2Symbol(coin string) string

	// Match reports whether symbol is quoted in this converter's asset.
	Match(symbol string) bool

	// SymbolSuffix 返回计价币后缀，例: USDT
	SymbolSuffix() string
}

// CommonSymbolConverter 以固定计价币后缀做转换，交易所符号形如 BTCUSDT
type CommonSymbolConverter struct {
	suffix string
}

func NewCommonSymbolConverter(suffix string) *CommonSymbolConverter {
	return &CommonSymbolConverter{suffix: strings.ToUpper(strings.TrimSpace(suffix))}
}

func (c *CommonSymbolConverter) SymbolSuffix() string {
	return c.suffix
}

// Match 仅接受以后缀结尾且带有基础币的交易对（"USDT" 本身不算）
func (c *CommonSymbolConverter) Match(symbol string) bool {
	return len(symbol) > len(c.suffix) && strings.HasSuffix(symbol, c.suffix)
}

// Symbol2Coin 只去掉末尾的计价币，BTCUSDTUSDT -> BTCUSDT
func (c *CommonSymbolConverter) Symbol2Coin(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return ""
	}
	return strings.TrimSuffix(sym, c.suffix)
}

// Coin2Symbol 将币种转换为交易对
// 例: BTC -> BTCUSDT, BTCUSDT -> BTCUSDT
func (c *CommonSymbolConverter) Coin2Symbol(coin string) string {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if coin == "" {
		return ""
	}
	if strings.HasSuffix(coin, c.suffix) {
		return coin
	}
	return coin + c.suffix
}
