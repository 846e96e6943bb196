package extract

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinChat/internal/domain/models"
)

func TestParseStockTrend(t *testing.T) {
	in := "HPG 股票趨勢過去 3 天:\n2024-01-01: 27000 VND (1.5%)\n2024-01-02: 27500 VND (-0.2%)"

	got := ParseStockTrend(in)

	assert.Equal(t, "HPG", got.StockName)
	assert.True(t, got.IsStructured)
	assert.Equal(t, []models.StockTrendPoint{
		{Date: "2024-01-01", Price: 27000, Change: 1.5},
		{Date: "2024-01-02", Price: 27500, Change: -0.2},
	}, got.Data)
	assert.Equal(t, in, got.RawText)
}

func TestParseStockTrend_NoTickerLine(t *testing.T) {
	got := ParseStockTrend("Recent prices\n2024-01-01: 27,000.5 VND (+1%)\nnot a point\n")

	assert.Equal(t, "", got.StockName)
	require.Len(t, got.Data, 1)
	assert.Equal(t, 27000.5, got.Data[0].Price)
	assert.Equal(t, 1.0, got.Data[0].Change)
	assert.True(t, got.IsStructured)
}

func TestParseStockTrend_NoPoints(t *testing.T) {
	got := ParseStockTrend("VNM 股票趨勢過去 7 天: 無資料")

	assert.Equal(t, "VNM", got.StockName)
	assert.Empty(t, got.Data)
	assert.NotNil(t, got.Data)
	assert.False(t, got.IsStructured)
}

func TestParseIntradayTrend(t *testing.T) {
	in := "Intraday hourly trend for HPG on 2024-05-02:\n" +
		"- 09:00：27,000 VND（—）\n" +
		"- 10:00：27,150 VND（+0.56%）\n" +
		"* 11:00：27,100.5 VND（-0.18%）\n" +
		"12:00 lunch break"

	got := ParseIntradayTrend(in)

	assert.Equal(t, "HPG", got.StockName)
	assert.Equal(t, "2024-05-02", got.Date)
	assert.True(t, got.IsStructured)
	require.Len(t, got.Data, 3)

	assert.Equal(t, "09:00", got.Data[0].Time)
	assert.Equal(t, 27000.0, got.Data[0].Price)
	assert.Nil(t, got.Data[0].Change)

	require.NotNil(t, got.Data[1].Change)
	assert.InDelta(t, 0.56, *got.Data[1].Change, 1e-9)
	assert.Equal(t, 27150.0, got.Data[1].Price)

	require.NotNil(t, got.Data[2].Change)
	assert.InDelta(t, -0.18, *got.Data[2].Change, 1e-9)
	assert.Equal(t, 27100.5, got.Data[2].Price)
}

func TestParseIntradayTrend_EmDashOnly(t *testing.T) {
	got := ParseIntradayTrend("Intraday hourly trend for HPG on 2024-05-02:\n- 10:00：27,000 VND（—）")

	require.Len(t, got.Data, 1)
	assert.Equal(t, models.IntradayStockData{Time: "10:00", Price: 27000, Change: nil}, got.Data[0])
}

func TestParseIntradayTrend_HeaderGate(t *testing.T) {
	// Valid rows under a missing header are not read.
	got := ParseIntradayTrend("hourly trend for HPG:\n- 10:00：27,000 VND（1%）")

	assert.False(t, got.IsStructured)
	assert.Empty(t, got.Data)
	assert.Equal(t, "", got.StockName)
	assert.Equal(t, "", got.Date)
}

func TestParseIntradayTrend_HeaderWithoutRows(t *testing.T) {
	got := ParseIntradayTrend("Intraday hourly trend for FPT on 2024-05-02:\nmarket closed")

	assert.Equal(t, "FPT", got.StockName)
	assert.False(t, got.IsStructured)
	assert.Empty(t, got.Data)
}

func TestParseVietMacroSummary(t *testing.T) {
	in := "Vietnam Macroeconomic Data from 2024-04-25 to 2024-05-02:\n" +
		"- CPI YoY: 4.4 % (as of 2024-04-30)\n" +
		"- Exports: 1,234.5 million USD (as of 2024-04-30)\n" +
		"- Policy rate: (as of 2024-05-01)\n" +
		"- broken line without date\n"

	got := ParseVietMacroSummary(in)

	assert.Equal(t, "2024-04-25", got.StartDate)
	assert.Equal(t, "2024-05-02", got.EndDate)
	assert.True(t, got.IsStructured)
	assert.Equal(t, []models.VietMacroIndicator{
		{Title: "CPI YoY", Value: "4.4", Unit: "%", Date: "2024-04-30"},
		{Title: "Exports", Value: "1,234.5", Unit: "million USD", Date: "2024-04-30"},
		{Title: "Policy rate", Value: "", Unit: "", Date: "2024-05-01"},
	}, got.Indicators)
}

func TestParseVietMacroSummary_MalformedHeader(t *testing.T) {
	got := ParseVietMacroSummary("no header here")

	assert.Equal(t, models.VietMacroSummary{
		StartDate:    "",
		EndDate:      "",
		Indicators:   []models.VietMacroIndicator{},
		RawText:      "no header here",
		IsStructured: false,
	}, got)
}

func TestParseVietMacroTrend(t *testing.T) {
	in := "Vietnam Macroeconomic Trends (2023-11-01 to 2024-05-01):\n" +
		"GDP growth:\n" +
		"  - 2023-12-31: 6.72 %\n" +
		"  - 2024-03-31: 5.66 %\n" +
		"FDI disbursed:\n" +
		"  - 2024-03-31: 4,630 million USD\n" +
		"  - 2024-04-30: — million USD\n"

	got := ParseVietMacroTrend(in)

	assert.True(t, got.IsStructured)
	require.Len(t, got.Trends, 2)

	gdp := got.Trends[0]
	assert.Equal(t, "GDP growth", gdp.Title)
	require.Len(t, gdp.Values, 2)
	assert.Equal(t, "2023-12-31", gdp.Values[0].Date)
	require.NotNil(t, gdp.Values[0].Value)
	assert.Equal(t, 6.72, *gdp.Values[0].Value)
	assert.Equal(t, "%", gdp.Values[0].Unit)

	fdi := got.Trends[1]
	assert.Equal(t, "FDI disbursed", fdi.Title)
	require.Len(t, fdi.Values, 2)
	require.NotNil(t, fdi.Values[0].Value)
	assert.Equal(t, 4630.0, *fdi.Values[0].Value)
	assert.Nil(t, fdi.Values[1].Value)
	assert.Equal(t, "million USD", fdi.Values[1].Unit)
}

func TestParseVietMacroTrend_TitleWithoutValuesIsDropped(t *testing.T) {
	in := "Vietnam Macroeconomic Trends:\n" +
		"GDP:\n" +
		"CPI:\n" +
		"  - 2024-04-30: 4.4 %\n"

	got := ParseVietMacroTrend(in)

	require.Len(t, got.Trends, 1)
	assert.Equal(t, "CPI", got.Trends[0].Title)
	assert.True(t, got.IsStructured)
}

func TestParseVietMacroTrend_HeaderIsCaseInsensitive(t *testing.T) {
	got := ParseVietMacroTrend("VIETNAM MACROECONOMIC TRENDS\nCPI:\n - 2024-04-30: 4.4 %")

	assert.True(t, got.IsStructured)
	require.Len(t, got.Trends, 1)
}

func TestParseVietMacroTrend_RequiresHeader(t *testing.T) {
	got := ParseVietMacroTrend("CPI:\n  - 2024-04-30: 4.4 %")

	assert.False(t, got.IsStructured)
	assert.Empty(t, got.Trends)
}

func TestParseVietMacroTrend_ValueWithoutUnit(t *testing.T) {
	got := ParseVietMacroTrend("Vietnam Macroeconomic Trends\nPMI:\n  - 2024-04-30: 56\n  - 2024-05-31: 50.3%\n  - 2024-06-30: 1,250.5 bn VND")

	require.True(t, got.IsStructured)
	require.Len(t, got.Trends, 1)
	vals := got.Trends[0].Values
	require.Len(t, vals, 3)

	require.NotNil(t, vals[0].Value)
	assert.Equal(t, 56.0, *vals[0].Value)
	assert.Empty(t, vals[0].Unit)

	require.NotNil(t, vals[1].Value)
	assert.Equal(t, 50.3, *vals[1].Value)
	assert.Equal(t, "%", vals[1].Unit)

	require.NotNil(t, vals[2].Value)
	assert.Equal(t, 1250.5, *vals[2].Value)
	assert.Equal(t, "bn VND", vals[2].Unit)
}

func TestParseVietMacroTrend_HeaderWithoutData(t *testing.T) {
	got := ParseVietMacroTrend("Vietnam Macroeconomic Trends:\nGDP:\nno data available")

	assert.False(t, got.IsStructured)
	assert.Empty(t, got.Trends)
}

const newsDigest = `
- [title] **VN-Index rebounds on banking rally**
- [time] 2024-05-02 10:15
- [category] Markets
- [rank] 0.87
- [content] Banks led the index higher.
Foreign investors were net buyers.
- [Link] https://example.com/a
---
- [time] 2024-05-02 09:00
- [content] block without a title
- [Link] https://example.com/b
---
- [title] **HPG posts Q1 profit**
- [content] Steel demand recovered.
- [Link] https://example.com/c
`

func TestParseNewsSummary(t *testing.T) {
	got := ParseNewsSummary(newsDigest)

	assert.True(t, got.IsStructured)
	require.Len(t, got.Articles, 2)

	assert.Equal(t, models.NewsArticle{
		Title:    "VN-Index rebounds on banking rally",
		Time:     "2024-05-02 10:15",
		Category: "Markets",
		Rank:     0.87,
		Content:  "Banks led the index higher.\nForeign investors were net buyers.",
		Link:     "https://example.com/a",
	}, got.Articles[0])

	second := got.Articles[1]
	assert.Equal(t, "HPG posts Q1 profit", second.Title)
	assert.Equal(t, 0.0, second.Rank)
	assert.Equal(t, "", second.Time)
	assert.Equal(t, "", second.Category)
	assert.Equal(t, "Steel demand recovered.", second.Content)
}

func TestParseNewsSummary_OneMalformedBlock(t *testing.T) {
	in := "- [time] today\n- [content] x\n- [Link] y\n---\n- [title] **Only one**\n- [Link] https://z"

	got := ParseNewsSummary(in)

	require.Len(t, got.Articles, 1)
	assert.Equal(t, "Only one", got.Articles[0].Title)
	assert.Equal(t, "", got.Articles[0].Content)
	assert.Equal(t, "https://z", got.Articles[0].Link)
	assert.True(t, got.IsStructured)
}

const fedDigest = `**2024-05-01** (Released on 2024-05-22)
- **Statement**: The Committee decided to maintain the target range.
Inflation remains elevated.
- [Full Statement](https://fed.example/statement-0501)
- [Full Minutes](https://fed.example/minutes-0501)
---
**2024-03-20**
- **Statement**: Rates unchanged.
- [Full Minutes](https://fed.example/minutes-0320)
---
Notes: this block does not start with a date and is skipped.`

func TestParseFedSummary(t *testing.T) {
	got := ParseFedSummary(fedDigest)

	assert.True(t, got.IsStructured)
	require.Len(t, got.Meetings, 2)

	assert.Equal(t, models.FedMeeting{
		MeetingDate:   "2024-05-01",
		ReleaseDate:   "2024-05-22",
		Statement:     "The Committee decided to maintain the target range.\nInflation remains elevated.",
		StatementLink: "https://fed.example/statement-0501",
		MinutesLink:   "https://fed.example/minutes-0501",
	}, got.Meetings[0])

	assert.Equal(t, models.FedMeeting{
		MeetingDate: "2024-03-20",
		Statement:   "Rates unchanged.",
		MinutesLink: "https://fed.example/minutes-0320",
	}, got.Meetings[1])
}

func TestParseFedSummary_StatementWithoutLinks(t *testing.T) {
	got := ParseFedSummary("**2024-01-31**\n- **Statement**: no links follow")

	require.Len(t, got.Meetings, 1)
	assert.Equal(t, "2024-01-31", got.Meetings[0].MeetingDate)
	assert.Equal(t, "", got.Meetings[0].Statement)
}

func TestParsersAreTotal(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"---",
		"---\n---\n",
		"**",
		"[title]",
		"[content] ",
		"- **Statement**:",
		"Intraday hourly trend for",
		"Vietnam Macroeconomic Data from 2024-01-01 to",
		"Vietnam Macroeconomic Trends",
		"股票趨勢過去",
		"\xff\xfe invalid utf8 \x80",
		"random unrelated text\nwith lines: and colons:",
	}

	for _, in := range inputs {
		for _, kind := range models.ParsedKinds() {
			res, err := Parse(kind, in)
			require.NoError(t, err)
			require.NotNil(t, res, "kind=%s input=%q", kind, in)
			assert.Equal(t, strings.TrimSpace(in), res.Raw(), "kind=%s input=%q", kind, in)
		}
	}
}

func TestUnrelatedTextIsUnstructured(t *testing.T) {
	for _, in := range []string{"", "---", "random unrelated text\nwith lines: and colons:", "Intraday hourly trend for"} {
		for _, kind := range models.ParsedKinds() {
			res, err := Parse(kind, in)
			require.NoError(t, err)
			assert.False(t, res.Structured(), "kind=%s input=%q", kind, in)
			assert.Equal(t, 0, res.EntityCount())
		}
	}
}

func TestBareMarkersStillYieldEntities(t *testing.T) {
	// Body-only formats degrade per field: a block with only its marker is an entity with defaults.
	fed := ParseFedSummary("**")
	require.Len(t, fed.Meetings, 1)
	assert.Equal(t, models.FedMeeting{}, fed.Meetings[0])

	news := ParseNewsSummary("[title]")
	require.Len(t, news.Articles, 1)
	assert.Equal(t, models.NewsArticle{}, news.Articles[0])
}

func TestRawTextIsTrimmedInput(t *testing.T) {
	inputs := []string{
		"\n\n  HPG 股票趨勢過去 3 天:\n2024-01-01: 27000 VND (1.5%)  \n",
		"  Vietnam Macroeconomic Data from 2024-04-25 to 2024-05-02:\n- CPI: 4 % (as of 2024-04-30)\n\t",
		"\t" + fedDigest + "\n",
		newsDigest,
		"no structure",
	}

	for _, in := range inputs {
		for _, kind := range models.ParsedKinds() {
			res, err := Parse(kind, in)
			require.NoError(t, err)
			assert.Equal(t, strings.TrimSpace(in), res.Raw())
		}
	}
}

func TestStructuredMatchesEntities(t *testing.T) {
	inputs := []string{
		fedDigest,
		newsDigest,
		"HPG 股票趨勢過去 3 天:\n2024-01-01: 27000 VND (1.5%)",
		"Intraday hourly trend for HPG on 2024-05-02:\n- 10:00：27,000 VND（—）",
		"Vietnam Macroeconomic Data from 2024-04-25 to 2024-05-02:\n- CPI: 4 % (as of 2024-04-30)",
		"Vietnam Macroeconomic Trends:\nCPI:\n  - 2024-04-30: 4.4 %",
		"plain text",
	}

	for _, in := range inputs {
		for _, kind := range models.ParsedKinds() {
			res, err := Parse(kind, in)
			require.NoError(t, err)
			assert.Equal(t, res.EntityCount() > 0, res.Structured(), "kind=%s input=%q", kind, in)
		}
	}
}

func TestParseIsIdempotent(t *testing.T) {
	for _, kind := range models.ParsedKinds() {
		for _, in := range []string{fedDigest, newsDigest, "x"} {
			a, err := Parse(kind, in)
			require.NoError(t, err)
			b, err := Parse(kind, in)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		}
	}
}

func TestParse_UnknownKind(t *testing.T) {
	res, err := Parse("candles", "whatever")

	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseTool(t *testing.T) {
	res := ParseTool(models.ToolStockPriceTrend, "HPG 股票趨勢過去 1 天:\n2024-01-01: 27000 VND (1.5%)<has_function_call>")
	assert.Equal(t, models.KindStockTrend, res.Kind())
	assert.True(t, res.Structured())
	assert.NotContains(t, res.Raw(), "<has_function_call>")

	raw := ParseTool(models.ToolStockPriceNow, " HPG: 27,000 VND ")
	assert.Equal(t, models.KindRaw, raw.Kind())
	assert.False(t, raw.Structured())
	assert.Equal(t, "HPG: 27,000 VND", raw.Raw())
}

func TestDecodeRestoresMarshalledResult(t *testing.T) {
	for _, kind := range models.ParsedKinds() {
		res, err := Parse(kind, newsDigest)
		require.NoError(t, err)
		data, err := json.Marshal(res)
		require.NoError(t, err)

		back, err := Decode(kind, data)
		require.NoError(t, err)
		assert.Equal(t, res, back, kind)
	}

	_, err := Decode("candles", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownKind)
}
