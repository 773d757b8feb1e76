package engine

// DashboardOptions tunes BuildDashboard.
type DashboardOptions struct {
	DiscountBins  Bins
	HistogramBins int
	// LossDiscount is the discount from which bins are checked for losses.
	LossDiscount float64
}

// DefaultDashboardOptions mirrors the reference dashboard.
func DefaultDashboardOptions() DashboardOptions {
	return DashboardOptions{
		DiscountBins:  DefaultDiscountBins,
		HistogramBins: 30,
		LossDiscount:  0.3,
	}
}

// Highlight is a single named figure called out under a chart.
type Highlight struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// CategoryPerformance pairs total sales and profit of one category.
type CategoryPerformance struct {
	Category string  `json:"category"`
	Sales    float64 `json:"sales"`
	Profit   float64 `json:"profit"`
}

// Dashboard carries the data behind every chart of the sales dashboard.
// Sections that could not be computed are nil and listed in Placeholders
// with the reason.
type Dashboard struct {
	Records int `json:"records"`

	OrdersByRegion   Result       `json:"orders_by_region"`
	OrdersByCategory Result       `json:"orders_by_category"`
	SalesHistogram   Result       `json:"sales_histogram"`
	ProfitSpread     []BoxSummary `json:"profit_spread"`

	SalesByCategory     []BoxSummary       `json:"sales_by_category"`
	ProfitDiscountTrend []Trendline        `json:"profit_discount_trend"`
	Correlation         *CorrelationMatrix `json:"correlation,omitempty"`
	ProfitPivot         *PivotTable        `json:"profit_pivot"`

	MonthlySales []MonthlyPoint `json:"monthly_sales"`

	ProfitByCategory       Result                `json:"profit_by_category"`
	MostProfitableCategory *Highlight            `json:"most_profitable_category,omitempty"`
	ProfitByRegion         Result                `json:"profit_by_region"`
	LeastProfitableRegion  *Highlight            `json:"least_profitable_region,omitempty"`
	DiscountProfit         Result                `json:"discount_profit"`
	DiscountLosesMoney     bool                  `json:"discount_loses_money"`
	CategoryPerformance    []CategoryPerformance `json:"category_performance"`

	Placeholders map[string]string `json:"placeholders,omitempty"`
}

// BuildDashboard runs every aggregation of the dashboard over ds, which is
// normally already filtered. Recoverable errors become placeholders; any
// other error aborts.
func BuildDashboard(ds *Dataset, opts DashboardOptions) (*Dashboard, error) {
	if opts.DiscountBins == nil {
		opts.DiscountBins = DefaultDiscountBins
	}
	if opts.HistogramBins <= 0 {
		opts.HistogramBins = 30
	}

	d := &Dashboard{Records: ds.Len(), Placeholders: map[string]string{}}
	// soft records a recoverable failure and reports whether err was nil.
	soft := func(section string, err error) (bool, error) {
		if err == nil {
			return true, nil
		}
		if IsRecoverable(err) {
			d.Placeholders[section] = err.Error()
			return false, nil
		}
		return false, err
	}

	var err error

	// Univariate
	if d.OrdersByRegion, err = GroupCount(ds, Region); err != nil {
		return nil, err
	}
	if d.OrdersByCategory, err = GroupCount(ds, Category); err != nil {
		return nil, err
	}
	lo, hi, err := Extent(ds, Sales)
	if ok, err := soft("sales_histogram", err); err != nil {
		return nil, err
	} else if ok {
		bins, err := EqualWidthBins(lo, hi, opts.HistogramBins)
		if err != nil {
			return nil, err
		}
		if d.SalesHistogram, err = BinAndReduce(ds, Sales, bins, ReduceCount, Sales); err != nil {
			return nil, err
		}
	}
	if d.ProfitSpread, err = Describe(ds, Category, Profit); err != nil {
		return nil, err
	}

	// Bivariate
	if d.SalesByCategory, err = Describe(ds, Category, Sales); err != nil {
		return nil, err
	}
	if d.ProfitDiscountTrend, err = Trend(ds, Category, Discount, Profit); err != nil {
		return nil, err
	}
	corr, err := Correlate(ds, NumericMeasures)
	if ok, err := soft("correlation", err); err != nil {
		return nil, err
	} else if ok {
		d.Correlation = corr
	}
	if d.ProfitPivot, err = Pivot(ds, Region, Category, Profit, ReduceSum); err != nil {
		return nil, err
	}

	// Time series
	if d.MonthlySales, err = MonthlyResample(ds, OrderDate, Sales); err != nil {
		return nil, err
	}

	// Insights
	if d.ProfitByCategory, err = GroupSum(ds, Category, Profit); err != nil {
		return nil, err
	}
	key, v, err := Extremum(d.ProfitByCategory, Max)
	if ok, err := soft("most_profitable_category", err); err != nil {
		return nil, err
	} else if ok {
		d.MostProfitableCategory = &Highlight{Key: key, Value: v}
	}

	if d.ProfitByRegion, err = GroupSum(ds, Region, Profit); err != nil {
		return nil, err
	}
	key, v, err = Extremum(d.ProfitByRegion, Min)
	if ok, err := soft("least_profitable_region", err); err != nil {
		return nil, err
	} else if ok {
		d.LeastProfitableRegion = &Highlight{Key: key, Value: v}
	}

	if d.DiscountProfit, err = BinAndReduce(ds, Discount, opts.DiscountBins, ReduceMean, Profit); err != nil {
		return nil, err
	}
	d.DiscountLosesMoney = ThresholdInsight(d.DiscountProfit.Where(BinsFrom(opts.LossDiscount)), Negative)

	sales, err := GroupSum(ds, Category, Sales)
	if err != nil {
		return nil, err
	}
	d.CategoryPerformance = make([]CategoryPerformance, 0, sales.Len())
	for _, g := range sales.Groups {
		profit, _ := d.ProfitByCategory.Get(g.Key)
		d.CategoryPerformance = append(d.CategoryPerformance, CategoryPerformance{
			Category: g.Key, Sales: g.Value, Profit: profit,
		})
	}

	if len(d.Placeholders) == 0 {
		d.Placeholders = nil
	}
	return d, nil
}
