package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SectorCycles/internal/model"
)

func date(s string) time.Time {
	t, _ := model.ParseDate(s)
	return t
}

func TestTelegramNotifier_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIBase = srv.URL
	require.NoError(t, n.Send(context.Background(), "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendWithRetry_Exhausts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIBase = srv.URL
	err := SendWithRetry(context.Background(), n, "hello", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendWithRetry_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIBase = srv.URL
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := SendWithRetry(ctx, n, "hello", 3)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestStartPolling_OnlyConfiguredChat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			if polls.Add(1) == 1 {
				w.Write([]byte(`{"ok":true,"result":[
					{"update_id":1,"message":{"text":"/refresh","chat":{"id":99}}},
					{"update_id":2,"message":{"text":"/status","chat":{"id":42}}}
				]}`))
				return
			}
			w.Write([]byte(`{"ok":true,"result":[]}`))
		default:
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIBase = srv.URL

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.StartPolling(ctx, func(_ context.Context, cmd string) string {
			mu.Lock()
			got = append(got, cmd)
			mu.Unlock()
			cancel()
			return ""
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/status"}, got)
}

func TestFormatFailures(t *testing.T) {
	assert.Contains(t, FormatFailures(nil), "No failed fetches")

	out := FormatFailures(model.FailureLog{
		{Period: "peak", Ticker: "XLK", Err: errors.New("status <500>")},
		{Period: "trough", Ticker: "XLE"},
	})
	assert.Contains(t, out, "(2)")
	assert.Contains(t, out, "peak / XLK: status &lt;500&gt;")
	assert.Less(t, strings.Index(out, "XLK"), strings.Index(out, "XLE"))
}

func TestFormatPeriodSummary(t *testing.T) {
	p := model.Period{Name: "trough", Start: date("2008-10-01"), End: date("2009-06-01")}
	frame := &model.PriceFrame{
		Period: "trough",
		Dates:  []time.Time{date("2008-10-01"), date("2008-10-02")},
		Columns: []model.Column{
			{Ticker: "XLF", Values: []float64{20, 15}, Valid: []bool{true, true}},
			{Ticker: "XLP", Values: []float64{0, 0}, Valid: []bool{false, false}},
		},
	}
	out := FormatPeriodSummary(p, frame)
	assert.Contains(t, out, "2008-10-01 → 2009-06-01")
	assert.Contains(t, out, "XLF: 20.00 → 15.00")
	assert.Contains(t, out, "XLP: n/a")

	assert.Contains(t, FormatPeriodSummary(p, &model.PriceFrame{Period: "trough"}), "No data")
}

func TestFormatRunSummary(t *testing.T) {
	s := &model.Snapshot{
		Provider: "mock",
		BuiltAt:  time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC),
		Periods:  []model.Period{{Name: "p1"}, {Name: "p2"}},
		Tickers:  []string{"A", "B"},
		Failures: model.FailureLog{{Period: "p2", Ticker: "B"}},
		Tables: model.AdjustedCloseTable{
			"p1": {Period: "p1", Dates: make([]time.Time, 3)},
			"p2": {Period: "p2", Dates: make([]time.Time, 2)},
		},
	}
	out := FormatRunSummary(s)
	assert.Contains(t, out, "p1: 3 rows, 2/2 tickers\n")
	assert.Contains(t, out, "p2: 2 rows, 1/2 tickers ⚠️")
	assert.Contains(t, out, "1 fetches failed")
}
