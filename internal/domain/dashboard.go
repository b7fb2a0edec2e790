package domain

import "time"

// Summary holds the headline metrics of a filtered view.
type Summary struct {
	TotalCurrent  float64 `json:"total_current"`
	TotalPrevious float64 `json:"total_previous"`
	TotalChange   float64 `json:"total_change"`
	// ChangePercent is 0 when TotalPrevious is not positive.
	ChangePercent float64 `json:"change_percent"`
	AvgDaily      float64 `json:"avg_daily"`
	Products      int     `json:"products"`
	Stores        int     `json:"stores"`
	Categories    int     `json:"categories"`
	Rows          int     `json:"rows"`
}

// GroupTotal is one point of the previous/current trend comparison.
type GroupTotal struct {
	Key      string  `json:"key"`
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
}

// ProductRank is a row of the most stale products chart.
type ProductRank struct {
	Product string  `json:"product"`
	Current float64 `json:"current"`
	Change  float64 `json:"change"`
}

// StoreRank is a row of the store ranking chart.
type StoreRank struct {
	Store   string  `json:"store"`
	Current float64 `json:"current"`
	Change  float64 `json:"change"`
}

// HistogramBin counts changes in [Lower, Upper); the last bin is closed.
type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// TableView is the projected and sorted detail table.
type TableView struct {
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	SortBy     string   `json:"sort_by"`
	Descending bool     `json:"descending"`
}

// DatasetOptions lists the choices a client can offer for a dataset.
type DatasetOptions struct {
	Stores         []string `json:"stores"`
	Categories     []string `json:"categories"`
	Columns        []string `json:"columns"`
	DefaultColumns []string `json:"default_columns"`
	GroupBy        []string `json:"group_by"`
}

// ArchiveResult lists the objects written for an archived view.
type ArchiveResult struct {
	DatasetID string    `json:"dataset_id"`
	Keys      []string  `json:"keys"`
	CreatedAt time.Time `json:"created_at"`
}
