package models

// Query structs for the status API. Bound with echo, defaulted with creasty/defaults
// and validated with go-playground/validator.

type TradesRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}

type SnapshotRequest struct {
	Refresh bool `query:"refresh" json:"refresh"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	State    TradingState `json:"state"`
	Symbol   string       `json:"symbol"`
	DryRun   bool         `json:"dry_run"`
	Interval string       `json:"next_interval"`
	Rejected int          `json:"sizer_rejected"`
}
