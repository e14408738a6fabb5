package models

// Statistics is the aggregated view behind the statistics page.
type Statistics struct {
	From                   string           `json:"from"`
	To                     string           `json:"to"`
	Total                  int64            `json:"total"`
	ByStatus               map[string]int64 `json:"by_status"`
	ByService              []NamedCount     `json:"by_service"`
	ByServiceIntervenant   []NamedCount     `json:"by_service_intervenant"`
	ByCategory             []NamedCount     `json:"by_category"`
	Monthly                []MonthlyCount   `json:"monthly"`
	AvgResolutionBusinessD float64          `json:"avg_resolution_business_days"`
}

// NamedCount is one bar of a breakdown.
type NamedCount struct {
	Name  string `json:"name" db:"name"`
	Count int64  `json:"count" db:"count"`
}

// MonthlyCount is one point of the created-tickets series.
type MonthlyCount struct {
	Month string `json:"month" db:"month"`
	Count int64  `json:"count" db:"count"`
}

// StatisticsQuery selects the statistics window.
type StatisticsQuery struct {
	From                 string
	To                   string
	ServiceIntervenantID int64
}
