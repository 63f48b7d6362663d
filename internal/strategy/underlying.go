package strategy

import "strings"

// underlyingAssets maps leveraged and inverse ETFs to the instrument whose
// signals drive them.
var underlyingAssets = map[string]string{
	"TQQQ": "QQQ", "SQQQ": "QQQ", "QLD": "QQQ", "QID": "QQQ",
	"UPRO": "SPY", "SPXU": "SPY", "SSO": "SPY", "SDS": "SPY",
	"SOXL": "SOXX", "SOXS": "SOXX",
	"TNA": "IWM", "TZA": "IWM", "UWM": "IWM", "TWM": "IWM",
	"UDOW": "DIA", "SDOW": "DIA",
	"FAS": "XLF", "FAZ": "XLF",
	"ERX": "XLE", "ERY": "XLE",
	"TECL": "XLK", "TECS": "XLK",
	"LABU": "XBI", "LABD": "XBI",
	"NUGT": "GDX", "DUST": "GDX",
	"GUSH": "XOP", "DRIP": "XOP",
	"EDC": "EEM", "EDZ": "EEM",
}

var leverage = map[string]float64{
	"TQQQ": 3, "UPRO": 3, "SOXL": 3, "TNA": 3, "UDOW": 3, "FAS": 3,
	"ERX": 3, "TECL": 3, "LABU": 3, "NUGT": 3, "GUSH": 3, "EDC": 3,
	"SQQQ": -3, "SPXU": -3, "SOXS": -3, "TZA": -3, "SDOW": -3, "FAZ": -3,
	"ERY": -3, "TECS": -3, "LABD": -3, "DUST": -3, "DRIP": -3, "EDZ": -3,
	"QLD": 2, "SSO": 2, "UWM": 2,
	"QID": -2, "SDS": -2, "TWM": -2,
}

// UnderlyingSymbol returns the signal instrument for symbol, or the
// upper-cased symbol itself when it has none.
func UnderlyingSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	if u, ok := underlyingAssets[s]; ok {
		return u
	}
	return s
}

// IsLeveraged reports whether symbol is a mapped leveraged ETF.
func IsLeveraged(symbol string) bool {
	_, ok := underlyingAssets[strings.ToUpper(symbol)]
	return ok
}

// Leverage returns the leverage factor of symbol: 3, 2, -2, -3, or 1 for
// unleveraged instruments.
func Leverage(symbol string) float64 {
	if f, ok := leverage[strings.ToUpper(symbol)]; ok {
		return f
	}
	return 1
}
