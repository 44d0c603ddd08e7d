package binanceclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllanBico/atlas/internal/ports"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeFutures serves a fixed 1m kline history and 8h funding history in the Binance wire format.
type fakeFutures struct {
	klines       int
	fundings     int
	klineCalls   atomic.Int32
	fundingCalls atomic.Int32
}

func (f *fakeFutures) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/klines", func(w http.ResponseWriter, r *http.Request) {
		f.klineCalls.Add(1)
		q := r.URL.Query()
		if q.Get("symbol") == "BADUSDT" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
			return
		}
		start, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
		end, _ := strconv.ParseInt(q.Get("endTime"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))

		out := make([][]interface{}, 0, limit)
		for i := 0; i < f.klines && len(out) < limit; i++ {
			open := t0.Add(time.Duration(i) * time.Minute).UnixMilli()
			if open < start || open > end {
				continue
			}
			price := strconv.Itoa(100 + i%10)
			out = append(out, []interface{}{
				open, price + ".5", price + ".9", price + ".1", price + ".25", "12.5",
				open + 59999, "0", 10, "0", "0", "0",
			})
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/fapi/v1/fundingRate", func(w http.ResponseWriter, r *http.Request) {
		f.fundingCalls.Add(1)
		q := r.URL.Query()
		start, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
		end, _ := strconv.ParseInt(q.Get("endTime"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))

		out := make([]map[string]interface{}, 0, limit)
		for i := 0; i < f.fundings && len(out) < limit; i++ {
			ft := t0.Add(time.Duration(i) * 8 * time.Hour).UnixMilli()
			if ft < start || ft > end {
				continue
			}
			out = append(out, map[string]interface{}{
				"symbol": q.Get("symbol"), "fundingRate": "0.00010000", "fundingTime": ft,
			})
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/fapi/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeFutures) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, RequestsPerSecond: 1000, Logger: ports.NopLogger{}})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestClient_GetKlinesRange_Paginates(t *testing.T) {
	fake := &fakeFutures{klines: 1600}
	c := newTestClient(t, fake)

	klines, err := c.GetKlinesRange(context.Background(), "BTCUSDT", "1m", t0, t0.Add(2000*time.Minute))
	require.NoError(t, err)
	require.Len(t, klines, 1600)
	assert.Equal(t, int32(2), fake.klineCalls.Load())

	for i := 1; i < len(klines); i++ {
		assert.Equal(t, time.Minute, klines[i].OpenTime.Sub(klines[i-1].OpenTime), "gap at %d", i)
	}
	first := klines[0]
	assert.Equal(t, "BTCUSDT", first.Symbol)
	assert.Equal(t, "1m", first.Interval)
	assert.True(t, first.OpenTime.Equal(t0))
	assert.True(t, first.Close.Equal(decimal.RequireFromString("100.25")))
	assert.True(t, first.High.Equal(decimal.RequireFromString("100.9")))
}

func TestClient_GetKlinesRange_SinglePage(t *testing.T) {
	fake := &fakeFutures{klines: 30}
	c := newTestClient(t, fake)

	klines, err := c.GetKlinesRange(context.Background(), "ETHUSDT", "1m", t0.Add(10*time.Minute), t0.Add(19*time.Minute))
	require.NoError(t, err)
	assert.Len(t, klines, 10)
	assert.Equal(t, int32(1), fake.klineCalls.Load())
}

func TestClient_GetKlinesRange_Errors(t *testing.T) {
	c := newTestClient(t, &fakeFutures{klines: 10})

	_, err := c.GetKlinesRange(context.Background(), "BADUSDT", "1m", t0, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	_, err = c.GetKlinesRange(context.Background(), "BTCUSDT", "1m", t0.Add(time.Hour), t0)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetKlinesRange(ctx, "BTCUSDT", "1m", t0, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}

func TestClient_GetFundingRates(t *testing.T) {
	fake := &fakeFutures{fundings: 1200}
	c := newTestClient(t, fake)

	rates, err := c.GetFundingRates(context.Background(), "BTCUSDT", t0, t0.Add(2000*8*time.Hour))
	require.NoError(t, err)
	require.Len(t, rates, 1200)
	assert.Equal(t, int32(2), fake.fundingCalls.Load())
	assert.True(t, rates[0].Rate.Equal(decimal.RequireFromString("0.0001")))
	assert.True(t, rates[1199].FundingTime.Equal(t0.Add(1199*8*time.Hour)))
}

func TestClient_Ping(t *testing.T) {
	c := newTestClient(t, &fakeFutures{})
	assert.NoError(t, c.Ping(context.Background()))
}
