package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// severityStyle is how a severity is labelled in chat messages.
type severityStyle struct {
	tag   string
	color string // hex, no leading #
}

var severityStyles = map[string]severityStyle{
	"critical": {tag: "CRITICAL", color: "D7263D"},
	"warning":  {tag: "WARNING", color: "F49D37"},
	"info":     {tag: "INFO", color: "3F88C5"},
}

func styleFor(severity string) severityStyle {
	if s, ok := severityStyles[severity]; ok {
		return s
	}
	return severityStyles["info"]
}

// payloadBuilders render an alert for each supported webhook type.
var payloadBuilders = map[string]func(*Alert) any{
	"slack": slackPayload,
	"teams": teamsPayload,
	"http":  httpPayload,
}

// headline is the one-line summary shared by the chat payloads.
func headline(a *Alert) string {
	if a.State == StateResolved {
		return fmt.Sprintf("%s cleared for session source %s", a.RuleName, a.SourceID)
	}
	return a.Message
}

func slackPayload(a *Alert) any {
	return map[string]string{
		"text": fmt.Sprintf("*[%s]* %s", stateTag(a), headline(a)),
	}
}

func teamsPayload(a *Alert) any {
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": styleFor(a.Severity).color,
		"summary":    a.RuleName,
		"title":      fmt.Sprintf("hrstress alert: %s (%s)", a.RuleName, a.State),
		"text":       headline(a),
	}
}

func httpPayload(a *Alert) any {
	return map[string]any{"source": "hrstress", "alert": a}
}

func stateTag(a *Alert) string {
	if a.State == StateResolved {
		return "RESOLVED"
	}
	return styleFor(a.Severity).tag
}

// deliver posts a to every webhook whose URL is set. Failures are logged.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		build, ok := payloadBuilders[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}
		body, err := json.Marshal(build(a))
		if err != nil {
			slog.Error("alerts: encode webhook payload", "type", wh.Type, "err", err)
			continue
		}
		if err := e.post(url, body); err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "rule", a.RuleName, "source", a.SourceID, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alerts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hrstress-server")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("alerts: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alerts: webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
