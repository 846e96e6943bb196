package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FinChat/internal/domain/models"
	domsvc "FinChat/internal/domain/service"
	"FinChat/pkg/config"
	xhttp "FinChat/pkg/http"
)

var (
	ErrUnknownTool = errors.New("unknown backend tool")
	ErrInvalidArgs = errors.New("invalid tool arguments")
)

const unknownError = "未知錯誤"

// toolDef describes how one tool maps onto a backend endpoint.
type toolDef struct {
	path  string
	field string // reply field holding the text
	empty string // text when the reply lacks field
	args  func() interface{}
	body  func(args interface{}) interface{}
}

var tools = map[string]toolDef{
	models.ToolStockPriceNow: {
		path: "/api/viet/price/now", field: "summary", empty: "查詢成功但無法解析回應內容",
		args: func() interface{} { return &models.StockPriceNowArgs{} },
	},
	models.ToolStockPriceTrend: {
		path: "/api/viet/price/trend", field: "summary", empty: "查詢成功但未收到趨勢說明文字",
		args: func() interface{} { return &models.StockPriceTrendArgs{} },
	},
	models.ToolIntradayTrend: {
		path: "/api/viet/price/performance", field: "summary", empty: "查詢成功但未收到盤中走勢說明",
		args: func() interface{} { return &models.IntradayPerformanceArgs{} },
	},
	models.ToolMacroSummary: {
		path: "/api/viet/macro/summary", field: "summary", empty: "查詢成功但沒有摘要結果。",
		args: func() interface{} { return &models.MacroSummaryArgs{} },
	},
	models.ToolMacroTrend: {
		path: "/api/viet/macro/trend", field: "summary", empty: "趨勢查詢成功，但回應內容缺少摘要。",
		args: func() interface{} { return &models.MacroTrendArgs{} },
	},
	models.ToolNewsSearch: {
		path: "/api/viet/news/search", field: "content", empty: "查詢成功但找不到相關新聞。",
		args: func() interface{} { return &models.NewsSearchArgs{} },
	},
	models.ToolFedSummary: {
		path: "/api/fed/summary", field: "summary", empty: "查詢成功但未收到 Fed 會議摘要",
		args: func() interface{} { return &models.FedSummaryArgs{} },
	},
	models.ToolWebSearch: {
		path: "/api/agent/search", field: "result_text", empty: "查詢成功但找不到相關資料。",
		args: func() interface{} { return &models.WebSearchArgs{} },
		body: func(a interface{}) interface{} {
			return map[string]interface{}{
				"query":                      a.(*models.WebSearchArgs).Query,
				"max_research_loops":         1,
				"initial_search_query_count": 1,
			}
		},
	},
}

// Client calls the analytics backend on behalf of the assistant's tools.
type Client struct {
	base *HTTPServiceBase
}

func NewClient(cfg *config.Config) *Client {
	return &Client{base: NewHTTPServiceBase(cfg.FastAPI)}
}

// NewClientWithBase is used by tests to point at an httptest server.
func NewClientWithBase(base *HTTPServiceBase) *Client {
	return &Client{base: base}
}

// Tools lists the backend-served tool names.
func Tools() []string {
	out := make([]string, 0, len(tools))
	for name := range tools {
		out = append(out, name)
	}
	return out
}

// Call runs a tool with JSON arguments. Backend failures come back as the
// user-facing failure sentence with Failed set; the error is reserved for an
// unknown tool or arguments that do not validate.
func (c *Client) Call(ctx context.Context, tool string, rawArgs json.RawMessage) (models.ToolResult, error) {
	def, ok := tools[tool]
	if !ok {
		return models.ToolResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}

	args := def.args()
	if len(rawArgs) > 0 && string(rawArgs) != "null" {
		if err := json.Unmarshal(rawArgs, args); err != nil {
			return models.ToolResult{}, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
	}
	if err := xhttp.ValidateStruct(args); err != nil {
		return models.ToolResult{}, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}

	body := interface{}(args)
	if def.body != nil {
		body = def.body(args)
	}
	return c.call(ctx, tool, def, body), nil
}

func (c *Client) call(ctx context.Context, tool string, def toolDef, body interface{}) models.ToolResult {
	var reply map[string]json.RawMessage
	err := c.base.PostJSONWithRetry(ctx, def.path, body, &reply)
	if err != nil {
		return models.ToolResult{Tool: tool, Text: FailureText(err), Failed: true}
	}

	text, ok := stringField(reply, def.field)
	if !ok {
		return models.ToolResult{Tool: tool, Text: def.empty}
	}
	return models.ToolResult{Tool: tool, Text: text}
}

// FailureText renders a backend error the way the chat shows it.
func FailureText(err error) string {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		detail, ok := se.Detail()
		if !ok {
			detail = unknownError
		}
		return "查詢失敗：" + detail
	}
	return "FastAPI 請求錯誤：" + err.Error()
}

// stringField returns reply[field] as text. A missing or null field reports false;
// non-string values are returned as their JSON.
func stringField(reply map[string]json.RawMessage, field string) (string, bool) {
	raw, ok := reply[field]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}

// TrendPoints fetches one indicator's values over a window such as "90d".
func (c *Client) TrendPoints(ctx context.Context, req models.TrendPointRequest) ([]models.MacroTrendValue, error) {
	if err := xhttp.ValidateStruct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}

	var reply models.TrendPointResponse
	if err := c.base.PostJSONWithRetry(ctx, "/api/viet/macro/trendpoint", req, &reply); err != nil {
		return nil, err
	}
	if reply.Trend == nil {
		reply.Trend = make([]models.MacroTrendValue, 0)
	}
	return reply.Trend, nil
}

// ParseDocument asks the backend to extract text from a file it can read at path.
func (c *Client) ParseDocument(ctx context.Context, path string) (string, error) {
	var reply struct {
		Text *string `json:"text"`
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if err := c.base.PostJSON(ctx, "/api/parse", map[string]string{"file_path": path}, &reply); err != nil {
		return "", err
	}
	if reply.Text == nil {
		return "", errors.New("backend parse: reply has no text")
	}
	return *reply.Text, nil
}

var _ domsvc.ToolBackend = (*Client)(nil)
