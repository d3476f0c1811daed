package models

import "time"

// Requests for the diagnostic HTTP endpoints. Defined in domain for
// consistency and reuse.

type ForecastRequest struct {
	Entity    string `query:"entity" json:"entity" validate:"required"`
	Metric    string `query:"metric" json:"metric" validate:"required"`
	Horizon   int    `query:"horizon" json:"horizon" default:"48" validate:"gte=1,lte=2000"`
	Frequency string `query:"frequency" json:"frequency" default:"30m" validate:"oneof=1m 5m 10m 15m 30m 1h"`
	NoWait    bool   `query:"no_wait" json:"no_wait"`
}

type CompletenessRequest struct {
	Entity   string `query:"entity" json:"entity" validate:"required"`
	Metric   string `query:"metric" json:"metric" validate:"required"`
	Start    string `query:"start" json:"start" validate:"required"`
	End      string `query:"end" json:"end" validate:"required"`
	Interval string `query:"interval" json:"interval" default:"30m" validate:"oneof=1m 5m 10m 15m 30m 1h"`
}

type StatusRequest struct {
	Entity string `query:"entity" json:"entity" validate:"required"`
	Metric string `query:"metric" json:"metric" validate:"required"`
}

type RetrainRequest struct {
	Entity string `json:"entity" validate:"required"`
	Metric string `json:"metric" validate:"required"`
}

// KeyStatus is a consolidated view of one key's health: model state,
// data completeness and ingest freshness. Sections fail independently;
// Errors carries the per-section failure, not the whole report.
type KeyStatus struct {
	Key          Key                 `json:"key"`
	Timestamp    time.Time           `json:"timestamp"`
	Model        *TrainedModel       `json:"model,omitempty"`
	Completeness *CompletenessReport `json:"completeness,omitempty"`
	LatestSample time.Time           `json:"latest_sample"`
	Errors       map[string]string   `json:"errors,omitempty"`
}
