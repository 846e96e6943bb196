package models

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// ToolKind names one of the semi-structured formats the assistant's tools emit.
type ToolKind string

const (
	KindFed          ToolKind = "fed"
	KindNews         ToolKind = "news"
	KindStockTrend   ToolKind = "stock_trend"
	KindIntraday     ToolKind = "intraday"
	KindMacroSummary ToolKind = "macro_summary"
	KindMacroTrend   ToolKind = "macro_trend"

	// KindRaw is used for tool output that has no parser.
	KindRaw ToolKind = "raw"
)

// Tool names as the chat runtime registers them.
const (
	ToolFedSummary        = "getFedSummary"
	ToolNewsSearch        = "searchVietNews"
	ToolStockPriceTrend   = "getStockPriceTrend"
	ToolIntradayTrend     = "getIntradayStockPerformance"
	ToolMacroSummary      = "getVietMacrostatSummary"
	ToolMacroTrend        = "getVietMacrostatTrend"
	ToolStockPriceNow     = "getStockPriceNow"
	ToolWebSearch         = "searchWeb"
	ToolListUploadedFiles = "listUserUploadedFiles"
	ToolReadUploadedFiles = "readUserFiles"
)

var toolKinds = map[string]ToolKind{
	ToolFedSummary:      KindFed,
	ToolNewsSearch:      KindNews,
	ToolStockPriceTrend: KindStockTrend,
	ToolIntradayTrend:   KindIntraday,
	ToolMacroSummary:    KindMacroSummary,
	ToolMacroTrend:      KindMacroTrend,
}

// ParsedKinds lists the kinds that have a parser, in display order.
func ParsedKinds() []ToolKind {
	return []ToolKind{KindFed, KindNews, KindStockTrend, KindIntraday, KindMacroSummary, KindMacroTrend}
}

// KindForTool maps a tool name onto its format. ok is false for tools without a parser.
func KindForTool(tool string) (ToolKind, bool) {
	k, ok := toolKinds[tool]
	return k, ok
}

// ToolsForKind returns the tool names that emit the given kind.
func ToolsForKind(kind ToolKind) []string {
	var out []string
	for tool, k := range toolKinds {
		if k == kind {
			out = append(out, tool)
		}
	}
	sort.Strings(out)
	return out
}

// ResolveKind accepts either a kind ("stock_trend") or a tool name ("getStockPriceTrend").
func ResolveKind(s string) (ToolKind, bool) {
	s = strings.TrimSpace(s)
	for _, k := range ParsedKinds() {
		if strings.EqualFold(string(k), s) {
			return k, true
		}
	}
	return KindForTool(s)
}

// ToolResultMessage is the record the chat runtime publishes after a tool call completes.
type ToolResultMessage struct {
	ID     string    `json:"id"`
	ChatID string    `json:"chat_id"`
	Tool   string    `json:"tool"`
	Result string    `json:"result"`
	TS     time.Time `json:"ts"`
}

// ParsedEnvelope carries a parsed result through delivery (websocket, kafka, clickhouse).
type ParsedEnvelope struct {
	ID         string          `json:"id"`
	ChatID     string          `json:"chat_id"`
	Tool       string          `json:"tool"`
	Kind       ToolKind        `json:"kind"`
	Structured bool            `json:"structured"`
	Result     ParsedResult    `json:"-"`
	Payload    json.RawMessage `json:"result"`
	ParsedAt   time.Time       `json:"parsed_at"`
}

// ToolResult is what a backend tool call produced. Failed marks error sentences so callers can count
// them; Text is still shown to the user either way.
type ToolResult struct {
	Tool   string `json:"tool"`
	Text   string `json:"text"`
	Failed bool   `json:"failed"`
}
