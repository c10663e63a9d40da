package uazapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendText(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/send/text", r.URL.Path)
			assert.Equal(t, "tok-123", r.Header.Get("token"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		cli := New(srv.URL, "tok-123")
		require.NoError(t, cli.SendText(context.Background(), "+5511999999999", "Olá!"))

		assert.Equal(t, "5511999999999", got["number"])
		assert.Equal(t, "5511999999999@s.whatsapp.net", got["chatId"])
		assert.Equal(t, "Olá!", got["text"])
		_, hasDelay := got["delay"]
		assert.False(t, hasDelay, "no typing delay unless requested")
	})

	t.Run("FallsBackToNextPath", func(t *testing.T) {
		var paths []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.Path)
			if r.URL.Path == "/send/text" {
				http.NotFound(w, r)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		cli := New(srv.URL, "tok")
		require.NoError(t, cli.SendText(context.Background(), "5511999999999", "oi"))
		assert.Equal(t, []string{"/send/text", "/api/send/text"}, paths)
	})

	t.Run("RetriesServerErrors", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		cli := New(srv.URL, "tok").
			WithTextPaths("/send/text").
			WithRetry(3, time.Millisecond)
		require.NoError(t, cli.SendText(context.Background(), "5511999999999", "oi"))
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("ClientErrorIsNotRetried", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		cli := New(srv.URL, "bad-token").
			WithTextPaths("/send/text").
			WithRetry(3, time.Millisecond)
		err := cli.SendText(context.Background(), "5511999999999", "oi")
		require.Error(t, err)
		assert.Equal(t, int32(1), hits.Load())
	})
}

func TestSendTextWithDelay(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cli := New(srv.URL, "tok").WithTextPaths("/send/text").WithMinVisibleDelay(1000)
	require.NoError(t, cli.SendTextWithDelay(context.Background(), "5511999999999", "oi", 300))

	// below the visible minimum gets bumped
	assert.Equal(t, float64(1000), got["delay"])
	assert.Equal(t, true, got["typing"])
}

func TestMakeChatID(t *testing.T) {
	num, chatID := makeChatID("+55 11 99999-9999")
	assert.Equal(t, "5511999999999", num)
	assert.Equal(t, "5511999999999@s.whatsapp.net", chatID)

	num, chatID = makeChatID("5511999999999@c.us")
	assert.Equal(t, "5511999999999", num)
	assert.Equal(t, "5511999999999@c.us", chatID)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://x.uazapi.com/send/text", joinURL("https://x.uazapi.com/", "/send/text"))
	assert.Equal(t, "https://x.uazapi.com/api/send/text", joinURL("https://x.uazapi.com/api", "/api/send/text"))
}
