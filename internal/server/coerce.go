// Field coercion for the ingest path. Payloads arrive as arbitrary JSON
// objects; every metric field is coerced independently and permissively, so a
// single bad value nulls that column instead of failing the whole request.
package server

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/minerpulse/minerpulse/internal/models"
)

// toFloat numeric-coerces v and returns it when finite, nil otherwise.
// Accepted inputs: JSON numbers, booleans (1/0) and numeric strings.
func toFloat(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case bool:
		if x {
			f = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

// toInt numeric-coerces v and truncates toward zero: 3.9 → 3, -3.9 → -3.
func toInt(v any) *int64 {
	f := toFloat(v)
	if f == nil {
		return nil
	}
	n := int64(math.Trunc(*f))
	return &n
}

// toString keeps strings as-is and formats finite numbers; anything else is nil.
func toString(v any) *string {
	switch x := v.(type) {
	case string:
		return &x
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return nil
		}
		s := strconv.FormatFloat(x, 'f', -1, 64)
		return &s
	default:
		return nil
	}
}

// coerceMinerID string-coerces the miner_id field; "" means missing.
func coerceMinerID(v any) string {
	if s := toString(v); s != nil {
		return *s
	}
	return ""
}

// coerceTs accepts only a finite JSON number, floored to unix seconds.
// Anything else (including numeric strings) defaults to the receipt time.
func coerceTs(v any, now time.Time) int64 {
	if f, ok := v.(float64); ok && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return int64(math.Floor(f))
	}
	return now.Unix()
}

// sampleFields maps ingest payload keys to column setters. Shaping is
// table-driven so the absent-or-invalid → NULL policy applies uniformly.
var sampleFields = map[string]func(*models.Sample, any){
	"temp":                   func(s *models.Sample, v any) { s.Temp = toFloat(v) },
	"vrTemp":                 func(s *models.Sample, v any) { s.VrTemp = toFloat(v) },
	"power":                  func(s *models.Sample, v any) { s.Power = toFloat(v) },
	"voltage":                func(s *models.Sample, v any) { s.Voltage = toFloat(v) },
	"current":                func(s *models.Sample, v any) { s.Current = toFloat(v) },
	"hashRate":               func(s *models.Sample, v any) { s.HashRate = toFloat(v) },
	"hashRate_1m":            func(s *models.Sample, v any) { s.HashRate1m = toFloat(v) },
	"hashRate_10m":           func(s *models.Sample, v any) { s.HashRate10m = toFloat(v) },
	"hashRate_1h":            func(s *models.Sample, v any) { s.HashRate1h = toFloat(v) },
	"expectedHashrate":       func(s *models.Sample, v any) { s.ExpectedHashrate = toFloat(v) },
	"fanspeed":               func(s *models.Sample, v any) { s.Fanspeed = toFloat(v) },
	"fanrpm":                 func(s *models.Sample, v any) { s.Fanrpm = toInt(v) },
	"frequency":              func(s *models.Sample, v any) { s.Frequency = toInt(v) },
	"coreVoltageActual":      func(s *models.Sample, v any) { s.CoreVoltageActual = toInt(v) },
	"errorPercentage":        func(s *models.Sample, v any) { s.ErrorPercentage = toFloat(v) },
	"sharesAccepted":         func(s *models.Sample, v any) { s.SharesAccepted = toInt(v) },
	"sharesRejected":         func(s *models.Sample, v any) { s.SharesRejected = toInt(v) },
	"isUsingFallbackStratum": func(s *models.Sample, v any) { s.IsUsingFallbackStratum = toInt(v) },
	"responseTime":           func(s *models.Sample, v any) { s.ResponseTime = toFloat(v) },
	"uptimeSeconds":          func(s *models.Sample, v any) { s.UptimeSeconds = toInt(v) },
	"blockHeight":            func(s *models.Sample, v any) { s.BlockHeight = toInt(v) },
	"version":                func(s *models.Sample, v any) { s.Version = toString(v) },
	"bestDiff":               func(s *models.Sample, v any) { s.BestDiff = toInt(v) },
	"bestSessionDiff":        func(s *models.Sample, v any) { s.BestSessionDiff = toInt(v) },
}

// shapeSample builds a row from a decoded payload. miner_id is validated by
// the caller; absent fields stay nil.
func shapeSample(body map[string]any, now time.Time) *models.Sample {
	s := &models.Sample{Ts: coerceTs(body["ts"], now)}
	for name, set := range sampleFields {
		if v, ok := body[name]; ok {
			set(s, v)
		}
	}
	return s
}
