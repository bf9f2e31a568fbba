package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTelegram_Send(t *testing.T) {
	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer server.Close()

	tg := NewTelegram(TelegramConfig{BotToken: "test-token", ChatID: "-100123", BaseURL: server.URL + "/"}, zap.NewNop())

	require.NoError(t, tg.Send(context.Background(), "<b>hi</b>"))
	assert.Equal(t, "-100123", got.ChatID)
	assert.Equal(t, "<b>hi</b>", got.Text)
	assert.Equal(t, "HTML", got.ParseMode)
}

func TestTelegram_OkFalseIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	tg := NewTelegram(TelegramConfig{BotToken: "t", ChatID: "1", BaseURL: server.URL}, zap.NewNop())

	err := tg.Send(context.Background(), "x")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegram_MalformedResponseIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway timeout</html>`))
	}))
	defer server.Close()

	tg := NewTelegram(TelegramConfig{BotToken: "t", ChatID: "1", BaseURL: server.URL}, zap.NewNop())

	assert.Error(t, tg.Send(context.Background(), "x"))
}

func TestTelegram_NotConfigured(t *testing.T) {
	tg := NewTelegram(TelegramConfig{}, zap.NewNop())

	assert.ErrorIs(t, tg.Send(context.Background(), "x"), ErrNotConfigured)
}

func TestTelegram_NetworkErrorHidesToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	tg := NewTelegram(TelegramConfig{BotToken: "secret-token", ChatID: "1", BaseURL: server.URL}, zap.NewNop())

	err := tg.Send(context.Background(), "x")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestTelegram_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Too Many Requests"}`))
	}))
	defer server.Close()

	tg := NewTelegram(TelegramConfig{BotToken: "t", ChatID: "1", BaseURL: server.URL}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, tg.Send(ctx, "x"), ErrRejected)
	}

	err := tg.Send(ctx, "x")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "expected open breaker, got %v", err)
	assert.Equal(t, int32(5), atomic.LoadInt32(&hits))
}
