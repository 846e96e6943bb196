package models

// Tool argument payloads, mirroring the parameters the chat runtime declares for each tool.
// Defaults are applied with creasty/defaults before validation.

type StockPriceNowArgs struct {
	StockName string `json:"stock_name" validate:"required"`
}

type StockPriceTrendArgs struct {
	StockName string `json:"stock_name" validate:"required"`
	Days      int    `json:"days" default:"7" validate:"min=1"`
}

type IntradayPerformanceArgs struct {
	StockName string `json:"stock_name" validate:"required"`
	Date      string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Day offsets are pointers so an explicit 0 survives default filling.
type MacroSummaryArgs struct {
	StartDaysAgo *int     `json:"start_days_ago" default:"7" validate:"required,min=0"`
	EndDaysAgo   *int     `json:"end_days_ago" default:"0" validate:"required,min=0"`
	Keywords     []string `json:"keywords,omitempty" validate:"omitempty,min=1"`
}

type MacroTrendArgs struct {
	Keywords     []string `json:"keywords" validate:"required,min=1,dive,required"`
	StartDaysAgo *int     `json:"start_days_ago" default:"180" validate:"required,min=0,max=730"`
	EndDaysAgo   *int     `json:"end_days_ago" default:"0" validate:"required,min=0,max=730"`
}

type NewsSearchArgs struct {
	Keywords []string `json:"keywords" validate:"required,min=1,dive,required"`
	Days     int      `json:"days" default:"7" validate:"min=1,max=30"`
}

type WebSearchArgs struct {
	Query string `json:"query" validate:"required"`
}

type FedSummaryArgs struct{}

// ReadFilesArgs matches filenames by case-insensitive substring. Empty means every file.
type ReadFilesArgs struct {
	Filenames []string `json:"filenames,omitempty" validate:"omitempty,dive,required"`
}

// TrendPointRequest asks for one macro indicator's history over a fixed window.
type TrendPointRequest struct {
	Indicator string `json:"indicator" validate:"required"`
	Range     string `json:"range" validate:"required,oneof=7d 30d 90d 180d 360d"`
}

type TrendPointResponse struct {
	Trend []MacroTrendValue `json:"trend"`
}

// ParseRequest is the body of POST /api/parse/:kind.
type ParseRequest struct {
	Text string `json:"text"`
}

type ManualFileRequest struct {
	Filename string `json:"filename" validate:"required,max=200"`
	Content  string `json:"content" validate:"required"`
}

type FileNameRequest struct {
	Name string `json:"name" validate:"required"`
}

// ToolCallResponse is returned by POST /api/tools/:name.
type ToolCallResponse struct {
	Tool   string       `json:"tool"`
	Kind   ToolKind     `json:"kind"`
	Failed bool         `json:"failed"`
	Result ParsedResult `json:"result"`
}
