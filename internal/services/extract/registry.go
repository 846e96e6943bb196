// Package extract turns the semi-structured text returned by assistant tools into typed records.
//
// Every parser is total: any input, including the empty string, yields a result whose RawText is the
// trimmed input and whose IsStructured flag says whether the rendering layer may use the entity list.
// Parsers hold no state and are safe for concurrent use.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"

	"FinChat/internal/domain/models"
)

var ErrUnknownKind = errors.New("unknown tool result kind")

type parserFunc func(string) models.ParsedResult

var parsers = map[models.ToolKind]parserFunc{
	models.KindFed:          func(s string) models.ParsedResult { return ParseFedSummary(s) },
	models.KindNews:         func(s string) models.ParsedResult { return ParseNewsSummary(s) },
	models.KindStockTrend:   func(s string) models.ParsedResult { return ParseStockTrend(s) },
	models.KindIntraday:     func(s string) models.ParsedResult { return ParseIntradayTrend(s) },
	models.KindMacroSummary: func(s string) models.ParsedResult { return ParseVietMacroSummary(s) },
	models.KindMacroTrend:   func(s string) models.ParsedResult { return ParseVietMacroTrend(s) },
}

// Parse dispatches text to the parser for kind.
func Parse(kind models.ToolKind, text string) (models.ParsedResult, error) {
	p, ok := parsers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return p(text), nil
}

// ParseTool sanitizes and parses the output of a named tool. Tools without a parser produce a RawResult.
func ParseTool(tool, text string) models.ParsedResult {
	text = Sanitize(text)
	kind, ok := models.KindForTool(tool)
	if !ok {
		return models.RawResult{RawText: text}
	}
	res, _ := Parse(kind, text)
	return res
}

var decoders = map[models.ToolKind]func([]byte) (models.ParsedResult, error){
	models.KindFed:          decodeAs[models.ParsedFedResult],
	models.KindNews:         decodeAs[models.ParsedNewsResult],
	models.KindStockTrend:   decodeAs[models.ParsedStockTrend],
	models.KindIntraday:     decodeAs[models.ParsedIntradayTrend],
	models.KindMacroSummary: decodeAs[models.VietMacroSummary],
	models.KindMacroTrend:   decodeAs[models.ParsedMacroTrend],
	models.KindRaw:          decodeAs[models.RawResult],
}

// Decode restores a result previously marshalled to JSON, e.g. from a cache.
func Decode(kind models.ToolKind, data []byte) (models.ParsedResult, error) {
	dec, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return dec(data)
}

func decodeAs[T models.ParsedResult](data []byte) (models.ParsedResult, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}
