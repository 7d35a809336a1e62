// Package models defines GORM data models for MinerPulse.
package models

// Sample is one telemetry reading from one miner at one point in time.
// Only Ts and MinerID are mandatory; every other column is nullable and a
// missing or non-numeric value in the ingest payload is stored as NULL rather
// than rejecting the row. Rows are append-only: no update or delete path
// exists, and duplicate (miner_id, ts) pairs are permitted.
type Sample struct {
	ID uint `gorm:"primarykey" json:"-"`

	// Identity + ordering. Ts is unix seconds; ordering between samples for a
	// miner is defined by Ts, not insertion order.
	Ts      int64  `gorm:"column:ts;index:idx_samples_miner_ts" json:"ts"`
	MinerID string `gorm:"column:miner_id;index:idx_samples_miner_ts,priority:1;not null" json:"miner_id"`

	// ── Sensors ──────────────────────────────────────────────────────────────
	Temp    *float64 `gorm:"column:temp" json:"temp"`
	VrTemp  *float64 `gorm:"column:vr_temp" json:"vrTemp"`
	Power   *float64 `gorm:"column:power" json:"power"`   // watts
	Voltage *float64 `gorm:"column:voltage" json:"voltage"`
	Current *float64 `gorm:"column:current" json:"current"`

	// ── Throughput (GH/s at different smoothing windows) ─────────────────────
	HashRate         *float64 `gorm:"column:hash_rate" json:"hashRate"`
	HashRate1m       *float64 `gorm:"column:hash_rate_1m" json:"hashRate_1m"`
	HashRate10m      *float64 `gorm:"column:hash_rate_10m" json:"hashRate_10m"`
	HashRate1h       *float64 `gorm:"column:hash_rate_1h" json:"hashRate_1h"`
	ExpectedHashrate *float64 `gorm:"column:expected_hashrate" json:"expectedHashrate"`

	// ── Cooling ──────────────────────────────────────────────────────────────
	Fanspeed *float64 `gorm:"column:fanspeed" json:"fanspeed"` // percent
	Fanrpm   *int64   `gorm:"column:fanrpm" json:"fanrpm"`

	// ── ASIC configuration at sample time ────────────────────────────────────
	Frequency         *int64 `gorm:"column:frequency" json:"frequency"`
	CoreVoltageActual *int64 `gorm:"column:core_voltage_actual" json:"coreVoltageActual"`

	// ── Pool / shares ────────────────────────────────────────────────────────
	ErrorPercentage        *float64 `gorm:"column:error_percentage" json:"errorPercentage"`
	SharesAccepted         *int64   `gorm:"column:shares_accepted" json:"sharesAccepted"`
	SharesRejected         *int64   `gorm:"column:shares_rejected" json:"sharesRejected"`
	IsUsingFallbackStratum *int64   `gorm:"column:is_using_fallback_stratum" json:"isUsingFallbackStratum"` // 0/1
	ResponseTime           *float64 `gorm:"column:response_time" json:"responseTime"`                       // ms

	// ── Device state ─────────────────────────────────────────────────────────
	UptimeSeconds   *int64  `gorm:"column:uptime_seconds" json:"uptimeSeconds"`
	BlockHeight     *int64  `gorm:"column:block_height" json:"blockHeight"`
	Version         *string `gorm:"column:version" json:"version"`
	BestDiff        *int64  `gorm:"column:best_diff" json:"bestDiff"`
	BestSessionDiff *int64  `gorm:"column:best_session_diff" json:"bestSessionDiff"`
}

// RangePoint is the reduced column set returned by the /range view.
type RangePoint struct {
	Ts              int64    `gorm:"column:ts" json:"ts"`
	Temp            *float64 `gorm:"column:temp" json:"temp"`
	VrTemp          *float64 `gorm:"column:vr_temp" json:"vrTemp"`
	Power           *float64 `gorm:"column:power" json:"power"`
	HashRate1m      *float64 `gorm:"column:hash_rate_1m" json:"hashRate_1m"`
	Fanrpm          *int64   `gorm:"column:fanrpm" json:"fanrpm"`
	ErrorPercentage *float64 `gorm:"column:error_percentage" json:"errorPercentage"`
	BestDiff        *int64   `gorm:"column:best_diff" json:"bestDiff"`
}
