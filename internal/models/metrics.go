package models

import "time"

// SystemMetrics summarises process counters for the metrics summary endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	SessionCacheHitRatio     float64   `json:"sessionCacheHitRatio"`
	RecordStoreCalls         uint64    `json:"recordStoreCalls"`
	AverageRecordStoreCallMs float64   `json:"averageRecordStoreCallMs"`
	TransitionsTotal         uint64    `json:"transitionsTotal"`
	TransitionFailures       uint64    `json:"transitionFailures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
