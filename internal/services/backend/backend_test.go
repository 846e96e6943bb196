package backend

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinChat/internal/domain/models"
	"FinChat/pkg/config"
)

func newTestClient(t *testing.T, retries int, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	base := NewHTTPServiceBase(config.FastAPIConfig{BaseURL: srv.URL + "/", MaxRetries: retries})
	return NewClientWithBase(base), &hits
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCall_ReturnsSummaryField(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	c, _ := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusOK, map[string]string{"summary": "HPG 股票趨勢過去 7 天:"})
	})

	res, err := c.Call(t.Context(), models.ToolStockPriceTrend, json.RawMessage(`{"stock_name":"HPG"}`))

	require.NoError(t, err)
	assert.Equal(t, "/api/viet/price/trend", gotPath)
	assert.Equal(t, "HPG", gotBody["stock_name"])
	assert.EqualValues(t, 7, gotBody["days"], "default days")
	assert.Equal(t, models.ToolResult{Tool: models.ToolStockPriceTrend, Text: "HPG 股票趨勢過去 7 天:"}, res)
}

func TestCall_NewsUsesContentField(t *testing.T) {
	c, _ := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"content": "news digest"})
	})

	res, err := c.Call(t.Context(), models.ToolNewsSearch, json.RawMessage(`{"keywords":["VN-Index"]}`))

	require.NoError(t, err)
	assert.Equal(t, "news digest", res.Text)
}

func TestCall_MissingFieldGivesEmptySentence(t *testing.T) {
	c, _ := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"summary": nil})
	})

	res, err := c.Call(t.Context(), models.ToolMacroTrend, json.RawMessage(`{"keywords":["CPI"]}`))

	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.Equal(t, "趨勢查詢成功，但回應內容缺少摘要。", res.Text)
}

func TestCall_StatusErrorUsesDetail(t *testing.T) {
	c, hits := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "找不到股票"})
	})

	res, err := c.Call(t.Context(), models.ToolStockPriceNow, json.RawMessage(`{"stock_name":"XYZ"}`))

	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Equal(t, "查詢失敗：找不到股票", res.Text)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits), "4xx is not retried")
}

func TestCall_StatusErrorWithoutDetail(t *testing.T) {
	c, _ := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("<html>bad</html>"))
	})

	res, err := c.Call(t.Context(), models.ToolFedSummary, nil)

	require.NoError(t, err)
	assert.Equal(t, "查詢失敗：未知錯誤", res.Text)
}

func TestCall_RetriesServerErrors(t *testing.T) {
	var n int32
	c, hits := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"summary": "ok"})
	})

	res, err := c.Call(t.Context(), models.ToolFedSummary, json.RawMessage(`{}`))

	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.EqualValues(t, 3, atomic.LoadInt32(hits))
}

func TestCall_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := NewClientWithBase(NewHTTPServiceBase(config.FastAPIConfig{BaseURL: url}))

	res, err := c.Call(t.Context(), models.ToolFedSummary, nil)

	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.True(t, strings.HasPrefix(res.Text, "FastAPI 請求錯誤："), res.Text)
}

func TestCall_WebSearchBody(t *testing.T) {
	var body map[string]interface{}
	c, _ := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/agent/search", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]string{"result_text": "answer"})
	})

	res, err := c.Call(t.Context(), models.ToolWebSearch, json.RawMessage(`{"query":"fed rate"}`))

	require.NoError(t, err)
	assert.Equal(t, "answer", res.Text)
	assert.Equal(t, map[string]interface{}{
		"query":                      "fed rate",
		"max_research_loops":         float64(1),
		"initial_search_query_count": float64(1),
	}, body)
}

func TestCall_MacroSummaryKeepsExplicitZero(t *testing.T) {
	var body map[string]interface{}
	c, _ := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]string{"summary": "s"})
	})

	_, err := c.Call(t.Context(), models.ToolMacroSummary, json.RawMessage(`{"start_days_ago":0}`))

	require.NoError(t, err)
	assert.EqualValues(t, 0, body["start_days_ago"])
	assert.EqualValues(t, 0, body["end_days_ago"])
}

func TestCall_RejectsBadInput(t *testing.T) {
	c, hits := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"summary": "s"})
	})

	_, err := c.Call(t.Context(), "getWeather", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)

	_, err = c.Call(t.Context(), models.ToolStockPriceNow, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrInvalidArgs)

	_, err = c.Call(t.Context(), models.ToolNewsSearch, json.RawMessage(`{"keywords":"x"}`))
	assert.ErrorIs(t, err, ErrInvalidArgs)

	_, err = c.Call(t.Context(), models.ToolIntradayTrend, json.RawMessage(`{"stock_name":"HPG","date":"01/02/2024"}`))
	assert.ErrorIs(t, err, ErrInvalidArgs)

	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestTrendPoints(t *testing.T) {
	c, _ := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/viet/macro/trendpoint", r.URL.Path)
		var req models.TrendPointRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Indicator == "empty" {
			writeJSON(w, http.StatusOK, map[string]interface{}{})
			return
		}
		_, _ = w.Write([]byte(`{"trend":[{"date":"2024-01","value":3.5,"unit":"%"},{"date":"2024-02","value":null,"unit":"%"}]}`))
	})

	got, err := c.TrendPoints(t.Context(), models.TrendPointRequest{Indicator: "CPI", Range: "90d"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].Value)
	assert.Equal(t, 3.5, *got[0].Value)
	assert.Nil(t, got[1].Value)

	got, err = c.TrendPoints(t.Context(), models.TrendPointRequest{Indicator: "empty", Range: "7d"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = c.TrendPoints(t.Context(), models.TrendPointRequest{Indicator: "CPI", Range: "45d"})
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestParseDocument(t *testing.T) {
	c, _ := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req["file_path"] {
		case "/data/ok.png":
			writeJSON(w, http.StatusOK, map[string]string{"text": "scanned"})
		case "/data/none.png":
			writeJSON(w, http.StatusOK, map[string]string{})
		default:
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "bad file"})
		}
	})

	text, err := c.ParseDocument(t.Context(), "/data/ok.png")
	require.NoError(t, err)
	assert.Equal(t, "scanned", text)

	_, err = c.ParseDocument(t.Context(), "/data/none.png")
	assert.Error(t, err)

	_, err = c.ParseDocument(t.Context(), "/data/bad.png")
	assert.Error(t, err)
}

func TestFailureText(t *testing.T) {
	assert.Equal(t, "FastAPI 請求錯誤：boom", FailureText(errors.New("boom")))
}
