package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/labstack/echo/v4"

	"superstore/internal/engine"
	"superstore/internal/export"
	"superstore/internal/metrics"
	"superstore/internal/models"
)

type Handler struct {
	data    atomic.Pointer[engine.Dataset]
	opts    engine.DashboardOptions
	metrics *metrics.Metrics
}

// NewHandler serves ds, which may be nil until the first load completes.
func NewHandler(ds *engine.Dataset, opts engine.DashboardOptions, m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.New()
	}
	h := &Handler{opts: opts, metrics: m}
	if ds != nil {
		h.data.Store(ds)
	}
	return h
}

// SetData swaps in a freshly loaded dataset.
func (h *Handler) SetData(ds *engine.Dataset) {
	h.data.Store(ds)
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))

	api := e.Group("/api", h.requireData)
	api.GET("/filters", h.GetFilters)
	api.GET("/records", h.GetRecords)
	api.GET("/group", h.GetGroup)
	api.GET("/pivot", h.GetPivot)
	api.GET("/correlation", h.GetCorrelation)
	api.GET("/sales/monthly", h.GetMonthlySales)
	api.GET("/discount/bins", h.GetDiscountBins)
	api.GET("/insights", h.GetInsights)
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/export/records.arrow", h.ExportArrow)
	api.GET("/export/report.xlsx", h.ExportReport)
}

// requireData answers 503 while the dataset is still loading.
func (h *Handler) requireData(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.data.Load() == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "dataset is loading")
		}
		return next(c)
	}
}

// --- HELPERS ---

func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// splitList flattens repeated and comma-separated query values.
func splitList(values []string) []string {
	out := []string{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// filtered applies the region/category selection of the query. An absent
// parameter selects everything; a present but empty one selects nothing.
func (h *Handler) filtered(c echo.Context) *engine.Dataset {
	ds := h.data.Load()
	spec := engine.DefaultFilterSpec(ds)
	params := c.QueryParams()
	for _, d := range []engine.Dimension{engine.Region, engine.Category} {
		if values, ok := params[string(d)]; ok {
			spec[d] = splitList(values)
		}
	}
	return engine.ApplyFilter(ds, spec)
}

// fail renders recoverable aggregation errors as a placeholder and bad field
// names as 400. Everything else goes to echo's error handler.
func (h *Handler) fail(c echo.Context, op string, err error) error {
	switch {
	case engine.IsRecoverable(err):
		h.metrics.Placeholders.WithLabelValues(op).Inc()
		return c.JSON(http.StatusUnprocessableEntity, models.Placeholder{Placeholder: true, Error: err.Error()})
	case errors.Is(err, engine.ErrUnknownField), errors.Is(err, engine.ErrInvalidBins):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return err
}

func (h *Handler) bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

// --- HANDLERS ---

func (h *Handler) Health(c echo.Context) error {
	ds := h.data.Load()
	if ds == nil {
		return c.JSON(http.StatusServiceUnavailable, models.Health{Status: "loading"})
	}
	return c.JSON(http.StatusOK, models.Health{Status: "ok", Records: ds.Len()})
}

func (h *Handler) GetFilters(c echo.Context) error {
	ds := h.data.Load()
	return c.JSON(http.StatusOK, models.FilterOptions{
		Regions:    ds.Values(engine.Region),
		Categories: ds.Values(engine.Category),
	})
}

func (h *Handler) GetRecords(c echo.Context) error {
	ds := h.filtered(c)
	total := ds.Len()
	limit, offset := getPaginationParams(c, 100)

	page := models.Page{Data: []engine.Record{}, Total: total, Limit: limit, Offset: offset}
	end := total
	if offset < total && limit < total-offset {
		end = offset + limit
	}
	for i := offset; i < end; i++ {
		page.Data = append(page.Data, ds.At(i))
	}
	return c.JSON(http.StatusOK, page)
}

type groupRequest struct {
	By      string `query:"by" validate:"required,oneof=region category segment sub_category ship_mode"`
	Value   string `query:"value" validate:"omitempty,oneof=sales quantity discount profit"`
	Reducer string `query:"agg" validate:"omitempty,oneof=sum mean avg count min max"`
}

func (h *Handler) GetGroup(c echo.Context) error {
	req := groupRequest{Value: string(engine.Sales), Reducer: string(engine.ReduceSum)}
	if err := h.bind(c, &req); err != nil {
		return err
	}
	reducer, err := engine.ParseReducer(req.Reducer)
	if err != nil {
		return h.fail(c, "group", err)
	}
	h.metrics.Aggregations.WithLabelValues("group").Inc()

	res, err := engine.GroupBy(h.filtered(c), engine.Dimension(req.By), engine.Measure(req.Value), reducer)
	if err != nil {
		return h.fail(c, "group", err)
	}
	resp := models.GroupResponse{By: req.By, Value: req.Value, Reducer: string(reducer), Result: res}
	if key, v, err := engine.Extremum(res, engine.Max); err == nil {
		resp.Max = &engine.Highlight{Key: key, Value: v}
	}
	if key, v, err := engine.Extremum(res, engine.Min); err == nil {
		resp.Min = &engine.Highlight{Key: key, Value: v}
	}
	return c.JSON(http.StatusOK, resp)
}

type pivotRequest struct {
	Rows    string `query:"rows" validate:"required,oneof=region category segment sub_category ship_mode"`
	Cols    string `query:"cols" validate:"required,oneof=region category segment sub_category ship_mode,nefield=Rows"`
	Value   string `query:"value" validate:"omitempty,oneof=sales quantity discount profit"`
	Reducer string `query:"agg" validate:"omitempty,oneof=sum mean avg count min max"`
}

func (h *Handler) GetPivot(c echo.Context) error {
	req := pivotRequest{Value: string(engine.Profit), Reducer: string(engine.ReduceSum)}
	if err := h.bind(c, &req); err != nil {
		return err
	}
	reducer, err := engine.ParseReducer(req.Reducer)
	if err != nil {
		return h.fail(c, "pivot", err)
	}
	h.metrics.Aggregations.WithLabelValues("pivot").Inc()

	p, err := engine.Pivot(h.filtered(c), engine.Dimension(req.Rows), engine.Dimension(req.Cols), engine.Measure(req.Value), reducer)
	if err != nil {
		return h.fail(c, "pivot", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetCorrelation(c echo.Context) error {
	fields := engine.NumericMeasures
	if names := splitList(c.QueryParams()["fields"]); len(names) > 0 {
		fields = make([]engine.Measure, 0, len(names))
		for _, n := range names {
			m, err := engine.ParseMeasure(n)
			if err != nil {
				return h.fail(c, "correlation", err)
			}
			fields = append(fields, m)
		}
	}
	h.metrics.Aggregations.WithLabelValues("correlation").Inc()

	m, err := engine.Correlate(h.filtered(c), fields)
	if err != nil {
		return h.fail(c, "correlation", err)
	}
	return c.JSON(http.StatusOK, m)
}

type monthlyRequest struct {
	Date  string `query:"date" validate:"omitempty,oneof=order_date ship_date"`
	Value string `query:"value" validate:"omitempty,oneof=sales quantity discount profit"`
}

// monthly sales
func (h *Handler) GetMonthlySales(c echo.Context) error {
	req := monthlyRequest{Date: string(engine.OrderDate), Value: string(engine.Sales)}
	if err := h.bind(c, &req); err != nil {
		return err
	}
	h.metrics.Aggregations.WithLabelValues("monthly").Inc()

	series, err := engine.MonthlyResample(h.filtered(c), engine.DateField(req.Date), engine.Measure(req.Value))
	if err != nil {
		return h.fail(c, "monthly", err)
	}
	items := make([]models.MonthlyItem, 0, len(series))
	for _, p := range series {
		items = append(items, models.MonthlyItem{Month: p.Label(), Volume: p.Value, Count: p.Count})
	}
	return c.JSON(http.StatusOK, items)
}

type binsRequest struct {
	Value   string `query:"value" validate:"omitempty,oneof=sales quantity discount profit"`
	Target  string `query:"target" validate:"omitempty,oneof=sales quantity discount profit"`
	Reducer string `query:"agg" validate:"omitempty,oneof=sum mean avg count min max"`
}

func (h *Handler) GetDiscountBins(c echo.Context) error {
	req := binsRequest{Value: string(engine.Discount), Target: string(engine.Profit), Reducer: string(engine.ReduceMean)}
	if err := h.bind(c, &req); err != nil {
		return err
	}
	reducer, err := engine.ParseReducer(req.Reducer)
	if err != nil {
		return h.fail(c, "bins", err)
	}
	bins := h.opts.DiscountBins
	if raw := splitList(c.QueryParams()["bins"]); len(raw) > 0 {
		custom := make([]float64, 0, len(raw))
		for _, s := range raw {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "bins: "+err.Error())
			}
			custom = append(custom, f)
		}
		if bins, err = engine.NewBins(custom); err != nil {
			return h.fail(c, "bins", err)
		}
	}
	h.metrics.Aggregations.WithLabelValues("bins").Inc()

	res, err := engine.BinAndReduce(h.filtered(c), engine.Measure(req.Value), bins, reducer, engine.Measure(req.Target))
	if err != nil {
		return h.fail(c, "bins", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetInsights(c echo.Context) error {
	h.metrics.Aggregations.WithLabelValues("insights").Inc()
	d, err := engine.BuildDashboard(h.filtered(c), h.opts)
	if err != nil {
		return h.fail(c, "insights", err)
	}
	return c.JSON(http.StatusOK, models.Insights{
		MostProfitableCategory: d.MostProfitableCategory,
		LeastProfitableRegion:  d.LeastProfitableRegion,
		DiscountLosesMoney:     d.DiscountLosesMoney,
		LossDiscount:           h.opts.LossDiscount,
	})
}

func (h *Handler) GetDashboard(c echo.Context) error {
	h.metrics.Aggregations.WithLabelValues("dashboard").Inc()
	d, err := engine.BuildDashboard(h.filtered(c), h.opts)
	if err != nil {
		return h.fail(c, "dashboard", err)
	}
	for section := range d.Placeholders {
		h.metrics.Placeholders.WithLabelValues(section).Inc()
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ExportArrow(c echo.Context) error {
	ds := h.filtered(c)
	return h.attachment(c, export.ArrowContentType, "", func(w io.Writer) error {
		return export.WriteArrow(w, ds, 0)
	})
}

func (h *Handler) ExportReport(c echo.Context) error {
	d, err := engine.BuildDashboard(h.filtered(c), h.opts)
	if err != nil {
		return h.fail(c, "report", err)
	}
	return h.attachment(c, export.XLSXContentType, "superstore-report.xlsx", func(w io.Writer) error {
		return export.WriteReport(w, d)
	})
}

// attachment renders write into memory and sends it only when write succeeds.
func (h *Handler) attachment(c echo.Context, contentType, filename string, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if filename != "" {
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	}
	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}
