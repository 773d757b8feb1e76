package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superstore/internal/engine"
	"superstore/internal/models"
)

func testData() *engine.Dataset {
	d := func(m time.Month, day int) time.Time { return time.Date(2016, m, day, 0, 0, 0, 0, time.UTC) }
	return engine.NewDataset([]engine.Record{
		{OrderDate: d(1, 3), ShipDate: d(1, 5), CustomerName: "Ann", Region: "East", Category: "Tech", Sales: 200, Quantity: 2, Discount: 0.05, Profit: 100},
		{OrderDate: d(1, 20), ShipDate: d(1, 22), CustomerName: "Bo", Region: "East", Category: "Tech", Sales: 50, Quantity: 1, Discount: 0.25, Profit: -50},
		{OrderDate: d(3, 7), ShipDate: d(3, 9), CustomerName: "Cy", Region: "West", Category: "Furniture", Sales: 120, Quantity: 4, Discount: 0.45, Profit: 20},
	})
}

func newTestServer(ds *engine.Dataset) (*echo.Echo, *Handler) {
	h := NewHandler(ds, engine.DefaultDashboardOptions(), nil)
	e := NewServer(h, nil)
	e.Logger.SetOutput(&strings.Builder{})
	return e, h
}

func get(t *testing.T, e *echo.Echo, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLoadingReturns503(t *testing.T) {
	e, h := newTestServer(nil)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, e, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, e, "/api/dashboard").Code)

	h.SetData(testData())
	rec := get(t, e, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Health{Status: "ok", Records: 3}, decode[models.Health](t, rec))
}

func TestGetFilters(t *testing.T) {
	e, _ := newTestServer(testData())
	rec := get(t, e, "/api/filters")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.FilterOptions{
		Regions:    []string{"East", "West"},
		Categories: []string{"Tech", "Furniture"},
	}, decode[models.FilterOptions](t, rec))
}

func TestGetGroup(t *testing.T) {
	e, _ := newTestServer(testData())
	rec := get(t, e, "/api/group?by=region&value=profit")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[models.GroupResponse](t, rec)
	assert.Equal(t, map[string]float64{"East": 50, "West": 20}, resp.Result.Map())
	require.NotNil(t, resp.Max)
	assert.Equal(t, engine.Highlight{Key: "East", Value: 50}, *resp.Max)
	assert.Equal(t, "sum", resp.Reducer)
}

func TestGetGroupFiltered(t *testing.T) {
	e, _ := newTestServer(testData())
	rec := get(t, e, "/api/group?by=category&value=sales&agg=mean&region=East")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.GroupResponse](t, rec)
	assert.Equal(t, map[string]float64{"Tech": 125}, resp.Result.Map())
	assert.Equal(t, "mean", resp.Reducer)
}

func TestEmptySelectionRendersPlaceholder(t *testing.T) {
	e, _ := newTestServer(testData())

	rec := get(t, e, "/api/records?region=")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[models.Page](t, rec).Total)

	rec = get(t, e, "/api/correlation?category=")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	p := decode[models.Placeholder](t, rec)
	assert.True(t, p.Placeholder)
	assert.Contains(t, p.Error, "insufficient data")
}

func TestGetGroupValidation(t *testing.T) {
	e, _ := newTestServer(testData())
	assert.Equal(t, http.StatusBadRequest, get(t, e, "/api/group").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, e, "/api/group?by=country").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, e, "/api/group?by=region&agg=median").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, e, "/api/pivot?rows=region&cols=region").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, e, "/api/correlation?fields=sales,margin").Code)
}

func TestGetPivot(t *testing.T) {
	e, _ := newTestServer(testData())
	rec := get(t, e, "/api/pivot?rows=region&cols=category")
	require.Equal(t, http.StatusOK, rec.Code)

	p := decode[engine.PivotTable](t, rec)
	v, ok := p.Get("East", "Tech")
	require.True(t, ok)
	assert.Equal(t, 50.0, v)
	_, ok = p.Get("East", "Furniture")
	assert.False(t, ok)
}

func TestGetMonthlySales(t *testing.T) {
	e, _ := newTestServer(testData())
	rec := get(t, e, "/api/sales/monthly")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.MonthlyItem{
		{Month: "2016-01", Volume: 250, Count: 2},
		{Month: "2016-03", Volume: 120, Count: 1},
	}, decode[[]models.MonthlyItem](t, rec))
}

func TestGetDiscountBins(t *testing.T) {
	e, _ := newTestServer(testData())
	rec := get(t, e, "/api/discount/bins")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[engine.Result](t, rec)
	assert.Equal(t, map[string]float64{"[0, 0.1)": 100, "[0.2, 0.3)": -50, "[0.4, 0.5)": 20}, res.Map())

	rec = get(t, e, "/api/discount/bins?bins=0,0.5,1&agg=count")
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[engine.Result](t, rec)
	assert.Equal(t, map[string]float64{"[0, 0.5)": 3}, res.Map())

	assert.Equal(t, http.StatusBadRequest, get(t, e, "/api/discount/bins?bins=0.5,0.1").Code)
}

func TestGetInsights(t *testing.T) {
	e, _ := newTestServer(testData())
	rec := get(t, e, "/api/insights")
	require.Equal(t, http.StatusOK, rec.Code)

	ins := decode[models.Insights](t, rec)
	require.NotNil(t, ins.MostProfitableCategory)
	assert.Equal(t, "Tech", ins.MostProfitableCategory.Key)
	require.NotNil(t, ins.LeastProfitableRegion)
	assert.Equal(t, "West", ins.LeastProfitableRegion.Key)
	assert.False(t, ins.DiscountLosesMoney)
}

func TestGetDashboard(t *testing.T) {
	e, _ := newTestServer(testData())
	rec := get(t, e, "/api/dashboard?category=Tech")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.JSONEq(t, "2", string(body["records"]))
	assert.Contains(t, body, "correlation")
	assert.Contains(t, body, "profit_pivot")
}

func TestGetRecordsPagination(t *testing.T) {
	e, _ := newTestServer(testData())
	rec := get(t, e, "/api/records?limit=1&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)

	page := decode[models.Page](t, rec)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Bo", page.Data[0].CustomerName)
}

func TestGetRecordsPaginationBounds(t *testing.T) {
	e, _ := newTestServer(testData())
	for target, want := range map[string][]string{
		"/api/records?limit=9223372036854775807&offset=1": {"Bo", "Cy"},
		"/api/records?limit=2&offset=2":                   {"Cy"},
		"/api/records?offset=5":                           {},
	} {
		rec := get(t, e, target)
		require.Equal(t, http.StatusOK, rec.Code, target)
		page := decode[models.Page](t, rec)
		assert.Equal(t, 3, page.Total, target)
		names := []string{}
		for _, r := range page.Data {
			names = append(names, r.CustomerName)
		}
		assert.Equal(t, want, names, target)
	}
}

func TestExportFailureLeavesResponseUncommitted(t *testing.T) {
	e, h := newTestServer(testData())
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/export/records.arrow", nil), rec)

	err := h.attachment(c, "application/octet-stream", "out.bin", func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("disk full")
	})
	require.Error(t, err)
	assert.False(t, c.Response().Committed)
	assert.Zero(t, rec.Body.Len())

	e.HTTPErrorHandler(err, c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "partial")
}

func TestExportArrow(t *testing.T) {
	e, _ := newTestServer(testData())
	rec := get(t, e, "/api/export/records.arrow?region=West")
	require.Equal(t, http.StatusOK, rec.Code)

	r, err := ipc.NewReader(rec.Body)
	require.NoError(t, err)
	defer r.Release()
	var rows int64
	for r.Next() {
		rows += r.Record().NumRows()
	}
	assert.Equal(t, int64(1), rows)
}

func TestExportReport(t *testing.T) {
	e, _ := newTestServer(testData())
	rec := get(t, e, "/api/export/report.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "superstore-report.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func TestMetricsEndpoint(t *testing.T) {
	e, _ := newTestServer(testData())
	get(t, e, "/api/group?by=region")
	rec := get(t, e, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `superstore_aggregations_total{operation="group"} 1`)
}

func TestRequestID(t *testing.T) {
	e, _ := newTestServer(testData())
	rec := get(t, e, "/healthz")
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)
}
