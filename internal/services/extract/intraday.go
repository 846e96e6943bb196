package extract

import (
	"regexp"
	"strings"

	"FinChat/internal/domain/models"
)

var (
	intradayHeader = regexp.MustCompile(`^Intraday hourly trend for (?P<ticker>\w+) on (?P<date>\d{4}-\d{2}-\d{2}):`)
	// Full-width colon and parentheses are part of the format.
	intradayRow = regexp.MustCompile(`[-*]?\s*(?P<time>\d{2}:\d{2})：(?P<price>[\d.,]+) VND（(?P<change>[^)）]+)）`)
)

// ParseIntradayTrend reads an hourly summary. Without the header line nothing else is attempted.
//
//	Intraday hourly trend for HPG on 2024-05-02:
//	- 09:00：27,000 VND（—）
//	- 10:00：27,150 VND（+0.56%）
func ParseIntradayTrend(text string) models.ParsedIntradayTrend {
	raw := strings.TrimSpace(text)
	res := models.ParsedIntradayTrend{
		Data:    make([]models.IntradayStockData, 0),
		RawText: raw,
	}

	header := groups(intradayHeader, raw)
	if header == nil {
		return res
	}
	res.StockName, res.Date = header["ticker"], header["date"]

	body := lines(raw)[1:]
	for _, l := range body {
		g := groups(intradayRow, l)
		if g == nil {
			continue
		}
		price := ParseNumber(g["price"])
		if price == nil {
			continue
		}
		res.Data = append(res.Data, models.IntradayStockData{
			Time:   g["time"],
			Price:  *price,
			Change: ParsePercent(g["change"]),
		})
	}

	res.IsStructured = len(res.Data) > 0
	return res
}
