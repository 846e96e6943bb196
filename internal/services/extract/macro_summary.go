package extract

import (
	"regexp"
	"strings"

	"FinChat/internal/domain/models"
)

var (
	macroSummaryHeader = regexp.MustCompile(`^Vietnam Macroeconomic Data from (?P<start>\d{4}-\d{2}-\d{2}) to (?P<end>\d{4}-\d{2}-\d{2}):`)
	macroIndicatorLine = regexp.MustCompile(`^-\s*(?P<title>.+?):\s*(?P<value>[-\d.,]+)?\s*(?P<unit>.*?)\s*\(as of (?P<date>\d{4}-\d{2}-\d{2})\)`)
)

// ParseVietMacroSummary reads the latest-value digest. Value and unit stay display strings and may be
// empty.
//
//	Vietnam Macroeconomic Data from 2024-04-25 to 2024-05-02:
//	- CPI YoY: 4.4 % (as of 2024-04-30)
//	- Policy rate: (as of 2024-05-01)
func ParseVietMacroSummary(text string) models.VietMacroSummary {
	raw := strings.TrimSpace(text)
	res := models.VietMacroSummary{
		Indicators: make([]models.VietMacroIndicator, 0),
		RawText:    raw,
	}

	header := groups(macroSummaryHeader, raw)
	if header == nil {
		return res
	}
	res.StartDate, res.EndDate = header["start"], header["end"]

	for _, l := range lines(raw)[1:] {
		g := groups(macroIndicatorLine, l)
		if g == nil {
			continue
		}
		res.Indicators = append(res.Indicators, models.VietMacroIndicator{
			Title: strings.TrimSpace(g["title"]),
			Value: strings.TrimSpace(g["value"]),
			Unit:  strings.TrimSpace(g["unit"]),
			Date:  g["date"],
		})
	}

	res.IsStructured = len(res.Indicators) > 0
	return res
}
