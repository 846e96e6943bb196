package extract

import (
	"regexp"
	"strings"

	"FinChat/internal/domain/models"
)

var (
	macroTrendHeader = regexp.MustCompile(`(?i)^Vietnam Macroeconomic Trends`)
	macroTrendTitle  = regexp.MustCompile(`^(?P<title>.+):$`)
	macroTrendValue  = regexp.MustCompile(`^\s*-\s*(?P<date>\d{4}-\d{2}-\d{2}):\s*(?P<value>[\d.,]+|—|–|N/A)(?:\s*(?P<unit>[^\d\s.,].*))?$`)
)

// ParseVietMacroTrend reads per-indicator time series:
//
//	Vietnam Macroeconomic Trends (2023-11-01 to 2024-05-01):
//	GDP growth:
//	  - 2023-12-31: 6.72 %
//	  - 2024-03-31: 5.66 %
//
// A title line opens a group and value lines append to it. Groups that never receive a value are
// dropped. The result is structured only with the header and at least one kept group.
func ParseVietMacroTrend(text string) models.ParsedMacroTrend {
	raw := strings.TrimSpace(text)
	res := models.ParsedMacroTrend{
		Trends:  make([]models.MacroTrendEntry, 0),
		RawText: raw,
	}
	if !macroTrendHeader.MatchString(raw) {
		return res
	}

	var (
		title  string
		values []models.MacroTrendValue
	)
	commit := func() {
		if title != "" && len(values) > 0 {
			res.Trends = append(res.Trends, models.MacroTrendEntry{Title: title, Values: values})
		}
	}

	for _, l := range lines(raw) {
		if g := groups(macroTrendTitle, l); g != nil {
			commit()
			title, values = strings.TrimSpace(g["title"]), nil
			continue
		}
		if g := groups(macroTrendValue, l); g != nil {
			values = append(values, models.MacroTrendValue{
				Date:  g["date"],
				Value: ParseNumber(g["value"]),
				Unit:  strings.TrimSpace(g["unit"]),
			})
		}
	}
	commit()

	res.IsStructured = len(res.Trends) > 0
	return res
}
