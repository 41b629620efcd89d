package models

// PeriodQuery selects one period, either by key (?period=Mar-25) or by
// year and month name (?year=2025&month=March).
type PeriodQuery struct {
	Period string `form:"period"`
	Year   string `form:"year"`
	Month  string `form:"month"`
}

// TrendQuery selects an inclusive period range.
type TrendQuery struct {
	From string `form:"from" binding:"required"` // e.g. "Jan-25"
	To   string `form:"to" binding:"required"`   // e.g. "Mar-25"
}

// ZonesQuery adds an optional limit to the zone ranking.
type ZonesQuery struct {
	PeriodQuery
	Limit int `form:"limit,omitempty"` // 0 = all zones
}
