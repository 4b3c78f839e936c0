package console

import (
	"fmt"
	"strings"

	"xbasis/internal/domain/model"
	dsvc "xbasis/internal/domain/service"
	"xbasis/internal/infrastructure/exchange"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiDim    = "\033[2m"
)

func colorize(s, c string) string { return c + s + ansiReset }

// Formatter renders one summary line per broadcast.
type Formatter struct {
	TopN      int
	Threshold float64 // basis percent at which a row turns green/red
	Symbols   exchange.SymbolConverter
}

func NewFormatter(topN int, threshold float64, symbols exchange.SymbolConverter) *Formatter {
	if topN <= 0 {
		topN = 5
	}
	if threshold <= 0 {
		threshold = 0.5
	}
	if symbols == nil {
		symbols = exchange.NewCommonSymbolConverter("USDT")
	}
	return &Formatter{TopN: topN, Threshold: threshold, Symbols: symbols}
}

// Render 例: [XBASIS] 120 pairs  BTC +0.12%  ETH -0.08% ...
func (f *Formatter) Render(env model.PushEnvelope) string {
	var sb strings.Builder
	sb.WriteString(colorize("[XBASIS] ", ansiDim))
	sb.WriteString(fmt.Sprintf("%d pairs", env.TotalCount))

	if env.TotalCount == 0 {
		sb.WriteString(colorize("  --", ansiDim))
		return sb.String()
	}

	for i, row := range env.Data {
		if i >= f.TopN {
			break
		}
		col := ansiYellow
		switch dsvc.Band(row.BasisPercent, f.Threshold) {
		case +1:
			col = ansiGreen
		case -1:
			col = ansiRed
		}
		sb.WriteString("  ")
		sb.WriteString(f.Symbols.Symbol2Coin(row.Symbol))
		sb.WriteString(" ")
		sb.WriteString(colorize(fmt.Sprintf("%+.2f%%", row.BasisPercent), col))
	}
	return sb.String()
}
