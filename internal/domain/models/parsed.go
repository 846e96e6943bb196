package models

// Parsed tool-result records. These are the boundary contract with the rendering layer, so unlike the
// rest of the domain they carry json tags: field names follow what the chat UI indexes into.

// ParsedResult is implemented by every assembler output.
type ParsedResult interface {
	Kind() ToolKind
	Raw() string
	Structured() bool
	EntityCount() int
}

type StockTrendPoint struct {
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
}

type ParsedStockTrend struct {
	StockName    string            `json:"stockName"`
	Data         []StockTrendPoint `json:"data"`
	RawText      string            `json:"rawText"`
	IsStructured bool              `json:"isStructured"`
}

func (p ParsedStockTrend) Kind() ToolKind   { return KindStockTrend }
func (p ParsedStockTrend) Raw() string      { return p.RawText }
func (p ParsedStockTrend) Structured() bool { return p.IsStructured }
func (p ParsedStockTrend) EntityCount() int { return len(p.Data) }

// IntradayStockData is one hourly close. Change is nil when the source printed a placeholder.
type IntradayStockData struct {
	Time   string   `json:"time"`
	Price  float64  `json:"price"`
	Change *float64 `json:"change"`
}

type ParsedIntradayTrend struct {
	StockName    string              `json:"stockName"`
	Date         string              `json:"date"`
	Data         []IntradayStockData `json:"data"`
	RawText      string              `json:"rawText"`
	IsStructured bool                `json:"isStructured"`
}

func (p ParsedIntradayTrend) Kind() ToolKind   { return KindIntraday }
func (p ParsedIntradayTrend) Raw() string      { return p.RawText }
func (p ParsedIntradayTrend) Structured() bool { return p.IsStructured }
func (p ParsedIntradayTrend) EntityCount() int { return len(p.Data) }

// VietMacroIndicator keeps value and unit as display strings.
type VietMacroIndicator struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
	Date  string `json:"date"`
}

type VietMacroSummary struct {
	StartDate    string               `json:"startDate"`
	EndDate      string               `json:"endDate"`
	Indicators   []VietMacroIndicator `json:"indicators"`
	RawText      string               `json:"rawText"`
	IsStructured bool                 `json:"isStructured"`
}

func (p VietMacroSummary) Kind() ToolKind   { return KindMacroSummary }
func (p VietMacroSummary) Raw() string      { return p.RawText }
func (p VietMacroSummary) Structured() bool { return p.IsStructured }
func (p VietMacroSummary) EntityCount() int { return len(p.Indicators) }

// MacroTrendValue is one dated observation. Value is nil when the number could not be read.
type MacroTrendValue struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

type MacroTrendEntry struct {
	Title  string            `json:"title"`
	Values []MacroTrendValue `json:"values"`
}

type ParsedMacroTrend struct {
	Trends       []MacroTrendEntry `json:"trends"`
	RawText      string            `json:"rawText"`
	IsStructured bool              `json:"isStructured"`
}

func (p ParsedMacroTrend) Kind() ToolKind   { return KindMacroTrend }
func (p ParsedMacroTrend) Raw() string      { return p.RawText }
func (p ParsedMacroTrend) Structured() bool { return p.IsStructured }
func (p ParsedMacroTrend) EntityCount() int { return len(p.Trends) }

type NewsArticle struct {
	Title    string  `json:"title"`
	Time     string  `json:"time"`
	Category string  `json:"category"`
	Rank     float64 `json:"rank"`
	Content  string  `json:"content"`
	Link     string  `json:"link"`
}

type ParsedNewsResult struct {
	Articles     []NewsArticle `json:"articles"`
	RawText      string        `json:"rawText"`
	IsStructured bool          `json:"isStructured"`
}

func (p ParsedNewsResult) Kind() ToolKind   { return KindNews }
func (p ParsedNewsResult) Raw() string      { return p.RawText }
func (p ParsedNewsResult) Structured() bool { return p.IsStructured }
func (p ParsedNewsResult) EntityCount() int { return len(p.Articles) }

// FedMeeting fields are empty strings when absent, never null.
type FedMeeting struct {
	MeetingDate   string `json:"meetingDate"`
	ReleaseDate   string `json:"releaseDate"`
	Statement     string `json:"statement"`
	StatementLink string `json:"statementLink"`
	MinutesLink   string `json:"minutesLink"`
}

type ParsedFedResult struct {
	Meetings     []FedMeeting `json:"meetings"`
	RawText      string       `json:"rawText"`
	IsStructured bool         `json:"isStructured"`
}

func (p ParsedFedResult) Kind() ToolKind   { return KindFed }
func (p ParsedFedResult) Raw() string      { return p.RawText }
func (p ParsedFedResult) Structured() bool { return p.IsStructured }
func (p ParsedFedResult) EntityCount() int { return len(p.Meetings) }

// RawResult wraps tool text that has no parser (price snapshots, web search). It is never structured.
type RawResult struct {
	RawText      string `json:"rawText"`
	IsStructured bool   `json:"isStructured"`
}

func (p RawResult) Kind() ToolKind   { return KindRaw }
func (p RawResult) Raw() string      { return p.RawText }
func (p RawResult) Structured() bool { return false }
func (p RawResult) EntityCount() int { return 0 }
