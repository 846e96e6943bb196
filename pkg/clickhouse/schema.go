package clickhouse

import "fmt"

// Table names for parsed tool-result entities.
const (
	TableStockTrendPoints = "stock_trend_points"
	TableIntradayPoints   = "intraday_points"
	TableMacroIndicators  = "macro_indicators"
	TableMacroTrendValues = "macro_trend_values"
	TableNewsArticles     = "news_articles"
	TableFedMeetings      = "fed_meetings"
)

// Schema returns CREATE statements for database and the parsed-entity tables.
// Every table carries result_id, chat_id and parsed_at. Rows are keyed by chat, result and the
// entity's own key in a ReplacingMergeTree, so a result written again after a retry collapses
// onto the first copy.
func Schema(database string) []string {
	table := func(name, cols, key string) string {
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	result_id String,
	chat_id String,
	parsed_at DateTime64(3, 'UTC'),
%s
) ENGINE = ReplacingMergeTree(parsed_at)
PARTITION BY toYYYYMM(parsed_at)
ORDER BY (chat_id, result_id, %s)`, database, name, cols, key)
	}

	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		table(TableStockTrendPoints, `	stock_name String,
	date String,
	price Float64,
	change Float64`, "date"),
		table(TableIntradayPoints, `	stock_name String,
	date String,
	time String,
	price Float64,
	change Nullable(Float64)`, "date, time"),
		table(TableMacroIndicators, `	start_date String,
	end_date String,
	title String,
	value String,
	unit String,
	date String`, "title, date"),
		table(TableMacroTrendValues, `	title String,
	date String,
	value Nullable(Float64),
	unit String`, "title, date"),
		table(TableNewsArticles, `	title String,
	time String,
	category String,
	rank Float64,
	content String,
	link String`, "title, link"),
		table(TableFedMeetings, `	meeting_date String,
	release_date String,
	statement String,
	statement_link String,
	minutes_link String`, "meeting_date"),
	}
}
