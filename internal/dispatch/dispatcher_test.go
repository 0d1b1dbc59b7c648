package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crosspost-io/crosspost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(ctx context.Context, message string, media *Media, accountHint string) Result {
	return Result{Success: true}
}

func TestResolveSinglePlatform(t *testing.T) {
	r := NewRegistry()
	r.Register(models.PlatformTelegram, nopDispatcher{})

	targets, err := r.Resolve(models.PlatformTelegram)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, models.PlatformTelegram, targets[0].Platform)
}

func TestResolveAllFansOut(t *testing.T) {
	r := NewRegistry()
	for _, p := range models.FanoutPlatforms {
		r.Register(p, nopDispatcher{})
	}

	targets, err := r.Resolve(models.PlatformAll)
	require.NoError(t, err)
	require.Len(t, targets, len(models.FanoutPlatforms))
	for i, p := range models.FanoutPlatforms {
		assert.Equal(t, p, targets[i].Platform)
	}
}

func TestResolveUnregisteredPlatform(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve(models.PlatformTwitter)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dispatcher registered")
}

func TestResolveAllMissingOneAdapter(t *testing.T) {
	r := NewRegistry()
	r.Register(models.PlatformTwitter, nopDispatcher{})

	_, err := r.Resolve(models.PlatformAll)
	require.Error(t, err)
}

func TestWebhookDispatchSuccess(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(webhookResponse{PostID: "tg-42"})
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(models.PlatformTelegram, srv.URL)
	res := d.Dispatch(context.Background(), "hello", &Media{Path: "/media/a.jpg", Type: "photo"}, "main")

	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, "tg-42", res.PlatformPostID)
	assert.Equal(t, models.PlatformTelegram, got.Platform)
	assert.Equal(t, "hello", got.Message)
	assert.Equal(t, "/media/a.jpg", got.MediaPath)
	assert.Equal(t, "photo", got.MediaType)
	assert.Equal(t, "main", got.AccountName)
}

func TestWebhookDispatchBridgeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(webhookResponse{Error: "rate limited"})
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(models.PlatformTwitter, srv.URL)
	res := d.Dispatch(context.Background(), "hello", nil, "")

	require.Error(t, res.Err)
	assert.False(t, res.Success)

	var derr *Error
	require.ErrorAs(t, res.Err, &derr)
	assert.Equal(t, models.PlatformTwitter, derr.Platform)
	assert.Contains(t, derr.Error(), "rate limited")
}

func TestWebhookDispatchUnreachableBridge(t *testing.T) {
	d := NewWebhookDispatcher(models.PlatformInstagram, "http://127.0.0.1:1")
	res := d.Dispatch(context.Background(), "hello", nil, "")

	require.Error(t, res.Err)
	assert.False(t, res.Success)
}
