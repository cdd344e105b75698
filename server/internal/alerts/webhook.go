package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/wamstack/wamstack/pkg/types"
	"github.com/wamstack/wamstack/server/internal/metrics"
)

// deliver sends webhook notifications for a to all configured targets.
// Errors are logged but do not affect the caller.
func (e *Engine) deliver(a types.AlertPayload, site string) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = e.sendSlack(url, a, site)
		case "teams":
			err = e.sendTeams(url, a, site)
		case "http":
			err = e.sendHTTP(url, a, site)
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			metrics.WebhookDeliveries.WithLabelValues(wh.Type, "error").Inc()
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"alert_id", a.ID,
				"err", err,
			)
			continue
		}
		metrics.WebhookDeliveries.WithLabelValues(wh.Type, "ok").Inc()
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "alert_id", a.ID)
	}
}

func (e *Engine) sendSlack(url string, a types.AlertPayload, site string) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*[WATER ALERT]* %s: %s", siteLabel(site), a.Message),
	})
	return e.post(url, body)
}

func (e *Engine) sendTeams(url string, a types.AlertPayload, site string) error {
	payload := map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": "FFAB40",
		"summary":    "Water quality alert",
		"title":      "Water quality alert: " + siteLabel(site),
		"text":       a.Message,
	}
	body, _ := json.Marshal(payload)
	return e.post(url, body)
}

func (e *Engine) sendHTTP(url string, a types.AlertPayload, site string) error {
	body, _ := json.Marshal(map[string]any{"alert": a, "site": site})
	return e.post(url, body)
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func siteLabel(site string) string {
	if site == "" {
		return "unknown site"
	}
	return site
}
