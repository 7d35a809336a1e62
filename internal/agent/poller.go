// Package agent implements the metric collection side of the MinerPulse agent.
// It polls a Bitaxe-class miner's local REST API instead of scraping the host:
// the subject of every sample is the ASIC device, not the machine the agent
// runs on.
package agent

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// reportedFields are the device-info keys forwarded verbatim to /ingest.
// The server coerces each one independently, so a firmware that reports e.g.
// bestDiff as a formatted string simply yields a NULL column.
var reportedFields = []string{
	"temp", "vrTemp", "power", "voltage", "current",
	"hashRate", "hashRate_1m", "hashRate_10m", "hashRate_1h", "expectedHashrate",
	"fanspeed", "fanrpm", "frequency", "coreVoltageActual",
	"errorPercentage", "sharesAccepted", "sharesRejected", "isUsingFallbackStratum",
	"uptimeSeconds", "blockHeight", "version", "bestDiff", "bestSessionDiff",
}

// DeviceClient polls a miner's local HTTP API (AxeOS-style /api/system/info).
type DeviceClient struct {
	base   string
	client *http.Client
}

// NewDeviceClient creates a client for the device at base, e.g. "http://192.168.1.50".
func NewDeviceClient(base string) *DeviceClient {
	return &DeviceClient{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Poll fetches the device info document and assembles an ingest payload.
// It stamps miner_id (arg, or the device-reported hostname when empty), the
// poll time as ts, and the measured round-trip as responseTime in ms.
func (d *DeviceClient) Poll(minerID string) (map[string]any, error) {
	start := time.Now()
	resp, err := d.client.Get(d.base + "/api/system/info")
	if err != nil {
		return nil, fmt.Errorf("polling device: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("device returned %d", resp.StatusCode)
	}

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding device info: %w", err)
	}
	elapsedMs := float64(time.Since(start).Microseconds()) / 1000.0

	payload := make(map[string]any, len(reportedFields)+3)
	for _, k := range reportedFields {
		if v, ok := info[k]; ok {
			payload[k] = v
		}
	}

	if minerID == "" {
		if h, ok := info["hostname"].(string); ok {
			minerID = h
		}
	}
	if minerID == "" {
		return nil, fmt.Errorf("no miner_id configured and device reported no hostname")
	}

	payload["miner_id"] = minerID
	payload["ts"] = time.Now().Unix()
	payload["responseTime"] = elapsedMs
	return payload, nil
}
