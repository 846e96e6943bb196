package repository

import (
	"context"
	"fmt"

	"FinChat/internal/domain/models"
	"FinChat/internal/domain/repository"
	pkgch "FinChat/pkg/clickhouse"
)

var baseColumns = []string{"result_id", "chat_id", "parsed_at"}

// tableColumns lists the entity columns per table, after baseColumns.
var tableColumns = map[string][]string{
	pkgch.TableStockTrendPoints: {"stock_name", "date", "price", "change"},
	pkgch.TableIntradayPoints:   {"stock_name", "date", "time", "price", "change"},
	pkgch.TableMacroIndicators:  {"start_date", "end_date", "title", "value", "unit", "date"},
	pkgch.TableMacroTrendValues: {"title", "date", "value", "unit"},
	pkgch.TableNewsArticles:     {"title", "time", "category", "rank", "content", "link"},
	pkgch.TableFedMeetings:      {"meeting_date", "release_date", "statement", "statement_link", "minutes_link"},
}

type rowInserter interface {
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error
	Health(ctx context.Context) error
	InitSchema(ctx context.Context, stmts []string) error
}

// ClickHouseParsedStore writes the entities of structured results, one table per kind.
type ClickHouseParsedStore struct {
	ch       rowInserter
	database string
}

func NewClickHouseParsedStore(ch *pkgch.Client, database string) *ClickHouseParsedStore {
	return &ClickHouseParsedStore{ch: ch, database: database}
}

func (s *ClickHouseParsedStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, pkgch.Schema(s.database))
}

func (s *ClickHouseParsedStore) StoreBatch(ctx context.Context, envs []*models.ParsedEnvelope) error {
	byTable := make(map[string][][]any)
	for _, env := range envs {
		table, rows := EntityRows(env)
		if table == "" {
			continue
		}
		byTable[table] = append(byTable[table], rows...)
	}

	for table, rows := range byTable {
		cols := append(append([]string{}, baseColumns...), tableColumns[table]...)
		if err := s.ch.InsertRows(ctx, s.database+"."+table, cols, rows); err != nil {
			return fmt.Errorf("store parsed %s: %w", table, err)
		}
	}
	return nil
}

func (s *ClickHouseParsedStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// Close is a no-op; the client is owned by the caller.
func (s *ClickHouseParsedStore) Close() error {
	return nil
}

// EntityRows flattens env into rows for its kind's table. Unstructured and raw
// results produce no rows.
func EntityRows(env *models.ParsedEnvelope) (string, [][]any) {
	if env == nil || env.Result == nil || !env.Result.Structured() {
		return "", nil
	}
	base := func(cols ...any) []any {
		return append([]any{env.ID, env.ChatID, env.ParsedAt}, cols...)
	}

	var (
		table string
		rows  [][]any
	)
	switch r := env.Result.(type) {
	case models.ParsedStockTrend:
		table = pkgch.TableStockTrendPoints
		for _, p := range r.Data {
			rows = append(rows, base(r.StockName, p.Date, p.Price, p.Change))
		}
	case models.ParsedIntradayTrend:
		table = pkgch.TableIntradayPoints
		for _, p := range r.Data {
			rows = append(rows, base(r.StockName, r.Date, p.Time, p.Price, p.Change))
		}
	case models.VietMacroSummary:
		table = pkgch.TableMacroIndicators
		for _, ind := range r.Indicators {
			rows = append(rows, base(r.StartDate, r.EndDate, ind.Title, ind.Value, ind.Unit, ind.Date))
		}
	case models.ParsedMacroTrend:
		table = pkgch.TableMacroTrendValues
		for _, tr := range r.Trends {
			for _, v := range tr.Values {
				rows = append(rows, base(tr.Title, v.Date, v.Value, v.Unit))
			}
		}
	case models.ParsedNewsResult:
		table = pkgch.TableNewsArticles
		for _, a := range r.Articles {
			rows = append(rows, base(a.Title, a.Time, a.Category, a.Rank, a.Content, a.Link))
		}
	case models.ParsedFedResult:
		table = pkgch.TableFedMeetings
		for _, m := range r.Meetings {
			rows = append(rows, base(m.MeetingDate, m.ReleaseDate, m.Statement, m.StatementLink, m.MinutesLink))
		}
	default:
		return "", nil
	}
	return table, rows
}

var _ repository.ParsedStore = (*ClickHouseParsedStore)(nil)
