package extract

import (
	"regexp"
	"strings"

	"FinChat/internal/domain/models"
)

const stockTrendMarker = "股票趨勢過去"

var (
	stockTrendTicker = regexp.MustCompile(`^(?P<ticker>\S+)\s股票趨勢`)
	stockTrendPoint  = regexp.MustCompile(`^(?P<date>\d{4}-\d{2}-\d{2}):\s+(?P<price>[\d.,]+)\s+VND\s+\((?P<change>[-+\d.]+)%\)`)
)

// ParseStockTrend reads a daily price narration:
//
//	HPG 股票趨勢過去 3 天:
//	2024-01-01: 27000 VND (1.5%)
//	2024-01-02: 27500 VND (-0.2%)
//
// The ticker line is optional; the result is structured as soon as one dated point is read.
func ParseStockTrend(text string) models.ParsedStockTrend {
	raw := strings.TrimSpace(text)
	all := lines(raw)

	var ticker string
	for _, l := range all {
		if strings.Contains(l, stockTrendMarker) {
			ticker = captureOr(stockTrendTicker, l, "ticker", "")
			break
		}
	}

	points := make([]models.StockTrendPoint, 0)
	for _, l := range all {
		g := groups(stockTrendPoint, l)
		if g == nil {
			continue
		}
		price, change := ParseNumber(g["price"]), ParsePercent(g["change"])
		if price == nil || change == nil {
			continue
		}
		points = append(points, models.StockTrendPoint{Date: g["date"], Price: *price, Change: *change})
	}

	return models.ParsedStockTrend{
		StockName:    ticker,
		Data:         points,
		RawText:      raw,
		IsStructured: len(points) > 0,
	}
}
