package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedDispatch struct {
	phone, name, text string
}

type fakeDispatcher struct {
	calls []recordedDispatch
}

func (f *fakeDispatcher) Dispatch(phone, name, text string) {
	f.calls = append(f.calls, recordedDispatch{phone: phone, name: name, text: text})
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/food-gpt", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWebhookDispatchesChatMessages(t *testing.T) {
	t.Run("FlatVenomStyle", func(t *testing.T) {
		d := &fakeDispatcher{}
		w := post(t, NewWebhookHandler(d),
			`{"body":"Quero uma pizza","from":"5511999999999@c.us","author":"Maria","type":"chat"}`)

		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, d.calls, 1)
		assert.Equal(t, "+5511999999999", d.calls[0].phone)
		assert.Equal(t, "Maria", d.calls[0].name)
		assert.Equal(t, "Quero uma pizza", d.calls[0].text)
	})

	t.Run("NestedUazapiStyle", func(t *testing.T) {
		d := &fakeDispatcher{}
		w := post(t, NewWebhookHandler(d),
			`{"body":{"message":{"messageType":"Conversation","content":"Oi","chatid":"5511999999999@s.whatsapp.net","senderName":"Maria"}}}`)

		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, d.calls, 1)
		assert.Equal(t, "+5511999999999", d.calls[0].phone)
		assert.Equal(t, "Oi", d.calls[0].text)
	})
}

func TestWebhookFiltersEvents(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{
			name: "EmptyBody",
			body: `{"body":"","from":"5511999999999@c.us","type":"chat"}`,
		},
		{
			name: "GroupFlag",
			body: `{"body":"oi","from":"5511999999999@c.us","type":"chat","isGroupMsg":true}`,
		},
		{
			name: "GroupJid",
			body: `{"message":{"content":"oi","chatid":"12036302@g.us","messageType":"Conversation"}}`,
		},
		{
			name: "NonChatType",
			body: `{"body":"caption","from":"5511999999999@c.us","type":"image"}`,
		},
		{
			name: "NonChatMessageType",
			body: `{"message":{"content":"x","chatid":"5511999999999@c.us","messageType":"AudioMessage"}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			w := post(t, NewWebhookHandler(d), tc.body)

			// dropped silently: 200, no reply, no dispatch
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, d.calls)
		})
	}
}

func TestWebhookRejectsBadRequests(t *testing.T) {
	t.Run("InvalidJSON", func(t *testing.T) {
		d := &fakeDispatcher{}
		w := post(t, NewWebhookHandler(d), `{not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid json")
		assert.Empty(t, d.calls)
	})

	t.Run("ValidJSONWithoutMessage", func(t *testing.T) {
		d := &fakeDispatcher{}
		w := post(t, NewWebhookHandler(d), `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "no message in payload",
			"well-formed but messageless payloads get their own diagnosis")
		assert.Empty(t, d.calls)
	})

	t.Run("InvalidChatID", func(t *testing.T) {
		d := &fakeDispatcher{}
		w := post(t, NewWebhookHandler(d), `{"body":"oi","from":"not-a-jid","type":"chat"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, d.calls)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		d := &fakeDispatcher{}
		req := httptest.NewRequest(http.MethodGet, "/webhook/food-gpt", nil)
		w := httptest.NewRecorder()
		NewWebhookHandler(d).ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestExtractPhone(t *testing.T) {
	phone, ok := extractPhone("5511999999999@c.us")
	require.True(t, ok)
	assert.Equal(t, "+5511999999999", phone)

	phone, ok = extractPhone("5511999999999@s.whatsapp.net")
	require.True(t, ok)
	assert.Equal(t, "+5511999999999", phone)

	_, ok = extractPhone("12036302@g.us")
	assert.False(t, ok)
}
