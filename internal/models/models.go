package models

import "superstore/internal/engine"

// FilterOptions lists the selectable values of every filter dimension.
type FilterOptions struct {
	Regions    []string `json:"regions"`
	Categories []string `json:"categories"`
}

// Page is a window over the filtered records.
type Page struct {
	Data   []engine.Record `json:"data"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// GroupResponse is one grouped aggregation.
type GroupResponse struct {
	By      string            `json:"by"`
	Value   string            `json:"value"`
	Reducer string            `json:"reducer"`
	Result  engine.Result     `json:"result"`
	Max     *engine.Highlight `json:"max,omitempty"`
	Min     *engine.Highlight `json:"min,omitempty"`
}

// MonthlyItem is one point of a monthly series.
type MonthlyItem struct {
	Month  string  `json:"month"`
	Volume float64 `json:"sales"`
	Count  int     `json:"count"`
}

// Insights are the scalar facts shown under the summary charts.
type Insights struct {
	MostProfitableCategory *engine.Highlight `json:"most_profitable_category"`
	LeastProfitableRegion  *engine.Highlight `json:"least_profitable_region"`
	DiscountLosesMoney     bool              `json:"discount_loses_money"`
	LossDiscount           float64           `json:"loss_discount"`
}

// Placeholder replaces a chart that could not be computed.
type Placeholder struct {
	Placeholder bool   `json:"placeholder"`
	Error       string `json:"error"`
}

// Health reports whether the dataset is ready.
type Health struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
}
