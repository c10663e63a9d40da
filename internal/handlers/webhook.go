package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	errInvalidJSON = errors.New("invalid json")
	// errNoMessage: the body was valid JSON but none of the known payload
	// shapes carried a message; usually a misconfigured gateway webhook.
	errNoMessage = errors.New("no message in payload")
)

// Dispatcher receives filtered inbound messages. Wired to the debounce
// buffer, or straight to the orchestrator when buffering is disabled.
type Dispatcher interface {
	Dispatch(phone, name, text string)
}

type webhookHandler struct {
	dispatcher Dispatcher
}

// NewWebhookHandler returns the HTTP handler for WhatsApp gateway callbacks.
func NewWebhookHandler(d Dispatcher) http.Handler {
	return &webhookHandler{dispatcher: d}
}

// ===== Tolerant payload structs =====

type incomingMessage struct {
	MessageType string `json:"messageType"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Body        string `json:"body"`
	Sender      string `json:"sender"`
	SenderName  string `json:"senderName"`
	Author      string `json:"author"`
	ChatID      string `json:"chatid"` // lowercase
	ChatID2     string `json:"chatId"` // CamelCase
	From        string `json:"from"`
	MessageID   string `json:"messageid"`
	MessageID2  string `json:"messageId"`
	IsGroupMsg  bool   `json:"isGroupMsg"`
	IsGroup     bool   `json:"isGroup"`
}

type payloadBody struct {
	Message incomingMessage `json:"message"`
}
type payloadRoot struct {
	Body payloadBody `json:"body"`
}

func (m *incomingMessage) norm() {
	if m.ChatID == "" && m.ChatID2 != "" {
		m.ChatID = m.ChatID2
	}
	if m.ChatID == "" && m.From != "" {
		m.ChatID = m.From
	}
	if m.MessageID == "" && m.MessageID2 != "" {
		m.MessageID = m.MessageID2
	}
	if m.Content == "" && m.Body != "" {
		m.Content = m.Body
	}
	if m.SenderName == "" && m.Author != "" {
		m.SenderName = m.Author
	}
}

func (m *incomingMessage) present() bool {
	return m.ChatID != "" || m.ChatID2 != "" || m.From != "" || m.Sender != ""
}

// Chat ID format: digits@c.us or digits@s.whatsapp.net
var chatIDRe = regexp.MustCompile(`^(\d+)(?:@s\.whatsapp\.net|@c\.us)$`)

// extractPhone returns the E.164-like phone ("+" + digits) from a chat id.
// Group JIDs (@g.us) and anything else do not match.
func extractPhone(chatid string) (string, bool) {
	m := chatIDRe.FindStringSubmatch(strings.TrimSpace(chatid))
	if len(m) == 2 {
		return "+" + m[1], true
	}
	return "", false
}

// isGroup flags group chats either by payload flag or by the JID suffix.
func (m *incomingMessage) isGroup() bool {
	return m.IsGroupMsg || m.IsGroup || strings.HasSuffix(strings.TrimSpace(m.ChatID), "@g.us")
}

// isChat reports whether this is a plain text chat message. Venom-style
// payloads use type "chat"; uazapi-style ones use messageType Conversation /
// ExtendedTextMessage. Media, stickers, calls etc. are not handled.
func (m *incomingMessage) isChat() bool {
	if m.Type != "" {
		return m.Type == "chat"
	}
	switch m.MessageType {
	case "Conversation", "ExtendedTextMessage":
		return true
	case "":
		// no type info at all: accept iff there is text
		return m.Content != ""
	}
	return false
}

// parsePayload accepts body.message, top-level message, or a flat object.
func parsePayload(r *http.Request) (incomingMessage, []byte, error) {
	defer r.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(r.Body, 2<<20)) // 2MB

	if !json.Valid(raw) {
		return incomingMessage{}, raw, errInvalidJSON
	}

	// 1) body.message
	{
		var pr payloadRoot
		if err := json.Unmarshal(raw, &pr); err == nil {
			msg := pr.Body.Message
			msg.norm()
			if msg.present() {
				return msg, raw, nil
			}
		}
	}
	// 2) message at the top
	{
		var pb payloadBody
		if err := json.Unmarshal(raw, &pb); err == nil {
			msg := pb.Message
			msg.norm()
			if msg.present() {
				return msg, raw, nil
			}
		}
	}
	// 3) flat message
	{
		var msg incomingMessage
		if err := json.Unmarshal(raw, &msg); err == nil {
			msg.norm()
			if msg.present() {
				return msg, raw, nil
			}
		}
	}

	return incomingMessage{}, raw, errNoMessage
}

func (h *webhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg, raw, err := parsePayload(r)
	if errors.Is(err, errNoMessage) {
		log.Warn().Str("raw", string(raw)).Msg("webhook payload without message")
		http.Error(w, errNoMessage.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Warn().Str("raw", string(raw)).Msg("webhook invalid json")
		http.Error(w, errInvalidJSON.Error(), http.StatusBadRequest)
		return
	}

	eventID := msg.MessageID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	// Drop without reply or state mutation: empty body, group chats,
	// non-chat message types.
	if strings.TrimSpace(msg.Content) == "" || msg.isGroup() || !msg.isChat() {
		log.Debug().
			Str("event_id", eventID).
			Str("chatid", msg.ChatID).
			Str("type", msg.Type).
			Str("message_type", msg.MessageType).
			Bool("group", msg.isGroup()).
			Msg("webhook event ignored")
		writeOK(w)
		return
	}

	phone, ok := extractPhone(msg.ChatID)
	if !ok {
		log.Warn().Str("event_id", eventID).Str("chatid", msg.ChatID).Msg("webhook invalid chatid")
		http.Error(w, "invalid chatid", http.StatusBadRequest)
		return
	}

	log.Info().Str("event_id", eventID).Str("phone", phone).Msg("webhook message accepted")
	h.dispatcher.Dispatch(phone, msg.SenderName, msg.Content)
	writeOK(w)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}
