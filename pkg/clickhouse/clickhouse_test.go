package clickhouse

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(ClientConfig{
		Host:         "ch",
		Port:         9000,
		Database:     "finchat",
		User:         "default",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		MaxExecTime:  90 * time.Second,
		AsyncInsert:  true,
		WaitForAsync: true,
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch:9000", u.Host)
	assert.Equal(t, "/finchat", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "5s", u.Query().Get("dial_timeout"))
	assert.Equal(t, "90", u.Query().Get("max_execution_time"))
	assert.Equal(t, "1", u.Query().Get("wait_for_async_insert"))
	assert.Empty(t, u.Query().Get("read_timeout"))
}

func TestBuildDSNOverHTTP(t *testing.T) {
	dsn := BuildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "x", UseHTTP: true})
	assert.True(t, strings.HasPrefix(dsn, "clickhouse+http://"))
	assert.NotContains(t, dsn, "async_insert")
}

func TestSchemaCoversEveryTable(t *testing.T) {
	stmts := Schema("finchat")
	require.Len(t, stmts, 7)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS finchat", stmts[0])

	for i, name := range []string{
		TableStockTrendPoints, TableIntradayPoints, TableMacroIndicators,
		TableMacroTrendValues, TableNewsArticles, TableFedMeetings,
	} {
		stmt := stmts[i+1]
		assert.Contains(t, stmt, "finchat."+name)
		assert.Contains(t, stmt, "result_id String")
		assert.Contains(t, stmt, "chat_id String")
		assert.Contains(t, stmt, "ENGINE = ReplacingMergeTree(parsed_at)")
		assert.Contains(t, stmt, "ORDER BY (chat_id, result_id, ")
	}
	assert.Contains(t, stmts[1], "ORDER BY (chat_id, result_id, date)")
	assert.Contains(t, stmts[2], "ORDER BY (chat_id, result_id, date, time)")
	assert.Contains(t, stmts[6], "ORDER BY (chat_id, result_id, meeting_date)")
	assert.Contains(t, stmts[2], "change Nullable(Float64)")
	assert.Contains(t, stmts[4], "value Nullable(Float64)")
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(t.Context())
	assert.Error(t, err)
}

func TestBuildInsert(t *testing.T) {
	q, args := BuildInsert("finchat.news_articles", []string{"result_id", "title"}, [][]any{
		{"r1", "a"},
		{"r1"},
		{"r1", "b"},
	})
	assert.Equal(t, "INSERT INTO finchat.news_articles (result_id, title) VALUES (?, ?), (?, ?)", q)
	assert.Equal(t, []any{"r1", "a", "r1", "b"}, args)

	q, args = BuildInsert("t", []string{"a"}, nil)
	assert.Empty(t, q)
	assert.Nil(t, args)
}
