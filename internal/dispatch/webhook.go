package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WebhookDispatcher forwards a resolved post as JSON to a platform
// bridge endpoint. The bridge owns the actual platform API call.
type WebhookDispatcher struct {
	platform string
	url      string
	client   *http.Client
}

func NewWebhookDispatcher(platform, url string) *WebhookDispatcher {
	return &WebhookDispatcher{
		platform: platform,
		url:      url,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

type webhookPayload struct {
	Platform    string `json:"platform"`
	Message     string `json:"message"`
	MediaPath   string `json:"media_path,omitempty"`
	MediaType   string `json:"media_type,omitempty"`
	AccountName string `json:"account_name,omitempty"`
}

type webhookResponse struct {
	PostID string `json:"post_id"`
	Error  string `json:"error"`
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, message string, media *Media, accountHint string) Result {
	payload := webhookPayload{
		Platform:    d.platform,
		Message:     message,
		AccountName: accountHint,
	}
	if media != nil {
		payload.MediaPath = media.Path
		payload.MediaType = media.Type
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Err: &Error{Platform: d.platform, Reason: err}}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return Result{Err: &Error{Platform: d.platform, Reason: err}}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return Result{Err: &Error{Platform: d.platform, Reason: err}}
	}
	defer resp.Body.Close()

	var parsed webhookResponse
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			parsed = webhookResponse{}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := parsed.Error
		if reason == "" {
			reason = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return Result{Err: &Error{Platform: d.platform, Reason: fmt.Errorf("%s", reason)}}
	}

	return Result{Success: true, PlatformPostID: parsed.PostID}
}
