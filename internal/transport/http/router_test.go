package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tradewise/internal/importer"
	"tradewise/internal/market"
	"tradewise/internal/store"
	"tradewise/internal/store/sqlite"
	syncsvc "tradewise/internal/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	bars    []market.Bar
	resName string
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchDaily(_ context.Context, _ string, _ market.AdjustBasis, _ time.Time) ([]market.Bar, error) {
	if len(s.bars) == 0 {
		return nil, fmt.Errorf("stub has no data")
	}
	return s.bars, nil
}

func (s *stubSource) ResolveName(_ context.Context, _ string) (string, error) {
	if s.resName == "" {
		return "", fmt.Errorf("unknown symbol")
	}
	return s.resName, nil
}

func stubBar(date string, close float64) market.Bar {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return market.Bar{Date: d, Open: close, High: close, Low: close, Close: close, Volume: 100}
}

func newTestServer(t *testing.T, src *stubSource) (*Server, store.Store) {
	t.Helper()
	st, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	var sources []market.Source
	if src != nil {
		sources = append(sources, src)
	}
	svc, err := syncsvc.NewService(syncsvc.Deps{Store: st, StockSources: sources, Concurrency: 1})
	require.NoError(t, err)

	srv, err := NewServer(ServerConfig{
		Addr:   ":0",
		Router: NewRouter(st, svc, importer.NewService(st), nil),
	})
	require.NoError(t, err)
	return srv, st
}

func doRequest(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func seedPrices(t *testing.T, st store.Store, assetID int64, closes map[string]float64) {
	t.Helper()
	var bars []market.Bar
	for date, close := range closes {
		bars = append(bars, stubBar(date, close))
	}
	rows := market.MergeBases(bars, nil, nil)
	_, err := st.UpsertPricePoints(context.Background(), assetID, rows)
	require.NoError(t, err)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestSyncSymbolEndpoint(t *testing.T) {
	src := &stubSource{bars: []market.Bar{stubBar("2024-01-02", 1650)}, resName: "贵州茅台"}
	srv, st := newTestServer(t, src)

	rec := doRequest(t, srv, httptest.NewRequest(http.MethodPost, "/api/assets/sync/600519?type=stock", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res syncsvc.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, "贵州茅台", res.Name)

	asset, ok, err := st.AssetBySymbol(context.Background(), "600519")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "贵州茅台", asset.Name)
}

func TestSyncSymbolEndpointFailure(t *testing.T) {
	srv, _ := newTestServer(t, &stubSource{}) // 无名称，同步必失败
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodPost, "/api/assets/sync/600519", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestImportTransactionsMultipart(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "trades.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("symbol,date,type,quantity,price,fees\n600519,2024-01-15,buy,100,1650.00,5.00\n600519,2024-02-20,dividend,100,2.50,0\n600519,2024-01-15,buy,100,1650.00,5.00\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/import", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := doRequest(t, srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res importer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.SkippedDuplicates)
	assert.Equal(t, 1, res.FilteredNonTrading)
}

func TestPortfolioSummaryEndpoint(t *testing.T) {
	srv, st := newTestServer(t, nil)
	ctx := context.Background()

	asset, err := st.EnsureAsset(ctx, "600519", "stock")
	require.NoError(t, err)
	require.NoError(t, st.UpdateAssetName(ctx, asset.ID, "贵州茅台"))
	_, err = st.InsertTransaction(ctx, store.Transaction{AssetID: asset.ID, Date: "2024-01-15", Side: "buy", Quantity: 100, Price: 1650})
	require.NoError(t, err)
	seedPrices(t, st, asset.ID, map[string]float64{"2024-01-15": 1650, "2024-01-16": 1700})

	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/portfolio/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []struct {
			Symbol   string  `json:"symbol"`
			Quantity float64 `json:"quantity"`
			Value    float64 `json:"value"`
		} `json:"items"`
		TotalValue float64 `json:"total_value"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "600519", body.Items[0].Symbol)
	assert.InDelta(t, 170000, body.TotalValue, 1e-6)
}

func TestEquityCurveEndpoint(t *testing.T) {
	srv, st := newTestServer(t, nil)
	ctx := context.Background()

	asset, err := st.EnsureAsset(ctx, "600519", "stock")
	require.NoError(t, err)
	_, err = st.InsertTransaction(ctx, store.Transaction{AssetID: asset.ID, Date: "2024-01-15", Side: "buy", Quantity: 10, Price: 1650})
	require.NoError(t, err)
	seedPrices(t, st, asset.ID, map[string]float64{"2024-01-15": 1650, "2024-01-16": 1700})

	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/portfolio/equity-curve", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Points []struct {
			Time  string  `json:"time"`
			Value float64 `json:"value"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Points, 2)
	assert.Equal(t, "2024-01-15", body.Points[0].Time)
	assert.InDelta(t, 16500, body.Points[0].Value, 1e-6)
	assert.InDelta(t, 17000, body.Points[1].Value, 1e-6)
}

func TestChartEndpoint(t *testing.T) {
	srv, st := newTestServer(t, nil)
	ctx := context.Background()

	asset, err := st.EnsureAsset(ctx, "600519", "stock")
	require.NoError(t, err)
	require.NoError(t, st.UpdateAssetName(ctx, asset.ID, "贵州茅台"))
	_, err = st.InsertTransaction(ctx, store.Transaction{AssetID: asset.ID, Date: "2024-01-15", Side: "buy", Quantity: 100, Price: 1650})
	require.NoError(t, err)
	seedPrices(t, st, asset.ID, map[string]float64{"2024-01-15": 1650, "2024-01-16": 1700})

	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/charts/600519", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var payload ChartPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "qfq", payload.Adjust)
	require.Len(t, payload.Dates, 2)
	require.Len(t, payload.Kline, 2)
	assert.Len(t, payload.Overlays, 3)
	require.Len(t, payload.Markers, 1)
	assert.Equal(t, "buy", payload.Markers[0].Side)
	assert.Equal(t, "belowBar", payload.Markers[0].Position)
}

func TestChartEndpointUnknownAsset(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/charts/999999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChartEndpointBadAdjust(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/charts/600519?adjust=fancy", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportEndpointWithoutRenderer(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/report/equity", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
