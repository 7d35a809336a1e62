// Package agent implements the MinerPulse reporting daemon.
// It periodically polls the miner device API and forwards samples to the
// server's /ingest endpoint. Every outbound HTTP request carries:
// Authorization: Bearer <token>
package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/minerpulse/minerpulse/internal/config"
)

// Run starts the agent main loop: poll the device, post the sample, repeat.
// Transient poll or report errors are logged and the loop continues; a miner
// rebooting must not take the reporter down with it.
//
// cfg.AgentJoinAddr is the server address, e.g. "192.168.1.1:8710".
// cfg.AgentOutboundToken is sent in every request as "Authorization: Bearer <token>".
func Run(cfg *config.Config, log zerolog.Logger) error {
	base := fmt.Sprintf("http://%s", cfg.AgentJoinAddr)
	device := NewDeviceClient(cfg.AgentMinerURL)
	token := cfg.AgentOutboundToken

	report := func() {
		payload, err := device.Poll(cfg.AgentMinerID)
		if err != nil {
			log.Warn().Err(err).Str("device", cfg.AgentMinerURL).Msg("poll failed")
			return
		}
		if err := postJSON(base+"/ingest", token, payload); err != nil {
			log.Warn().Err(err).Str("server", base).Msg("report failed")
			return
		}
		log.Debug().
			Interface("miner_id", payload["miner_id"]).
			Interface("ts", payload["ts"]).
			Msg("sample reported")
	}

	log.Info().
		Str("device", cfg.AgentMinerURL).
		Str("server", base).
		Int("interval_s", cfg.AgentInterval).
		Msg("agent started")

	report()

	ticker := time.NewTicker(time.Duration(cfg.AgentInterval) * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		report()
	}
	return nil
}

// postJSON sends v as JSON via HTTP POST with the Bearer token in the Authorization header.
func postJSON(url, bearerToken string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearerToken)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("server rejected token (401) — check --token or ingest_token in config")
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}
