package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/your-org/pizzeria-agent/internal/models"
	"github.com/your-org/pizzeria-agent/internal/prompt"
)

// FallbackReply is sent when the completion call fails. The failure itself is
// logged; the customer just sees the canned text and the conversation keeps
// going.
const FallbackReply = "Desculpa, não entendi. Pode repetir novamente?"

// emptyReply covers the odd case of a successful completion with no text.
const emptyReply = "Não entendi..."

// Completer is the chat-completion adapter consumed by the orchestrator.
type Completer interface {
	ChatCompletion(ctx context.Context, msgs []models.ChatMessage) (string, error)
}

// TextSender delivers a reply to a customer, optionally with a typing delay.
type TextSender interface {
	SendTextWithDelay(ctx context.Context, jidOrNumber, text string, delayMs int) error
}

// ConversationStore loads and saves per-customer conversation records.
type ConversationStore interface {
	Load(ctx context.Context, phone string) (models.ConversationRecord, bool, error)
	Save(ctx context.Context, phone string, rec models.ConversationRecord) error
}

// OrderArchiver receives closed orders. Optional.
type OrderArchiver interface {
	SaveOrder(ctx context.Context, rec models.ConversationRecord) error
}

// Orchestrator runs one conversation turn per inbound message: load or seed
// the record, append the user turn, complete, reply, detect closing, persist.
// Turns for the same phone are serialized by a keyed lock, so two rapid
// messages from one customer cannot race on the same record.
type Orchestrator struct {
	completer Completer
	sender    TextSender
	store     ConversationStore
	archiver  OrderArchiver

	storeName    string
	replyDelay   func() time.Duration
	now          func() time.Time
	newOrderCode func() string

	locks *keyedLocks
}

// New wires the orchestrator with its collaborators. Optional behavior is set
// with the With* methods, mirroring the transport client.
func New(completer Completer, sender TextSender, store ConversationStore, storeName string) *Orchestrator {
	return &Orchestrator{
		completer:    completer,
		sender:       sender,
		store:        store,
		storeName:    storeName,
		replyDelay:   func() time.Duration { return 0 },
		now:          time.Now,
		newOrderCode: prompt.NewOrderCode,
		locks:        newKeyedLocks(),
	}
}

// WithArchiver enables best-effort archiving of closed orders.
func (o *Orchestrator) WithArchiver(a OrderArchiver) *Orchestrator {
	o.archiver = a
	return o
}

// WithReplyDelay sets the typing-delay source applied to outbound replies.
func (o *Orchestrator) WithReplyDelay(f func() time.Duration) *Orchestrator {
	if f != nil {
		o.replyDelay = f
	}
	return o
}

// WithClock overrides the time source.
func (o *Orchestrator) WithClock(f func() time.Time) *Orchestrator {
	if f != nil {
		o.now = f
	}
	return o
}

// WithOrderCodes overrides the order-code generator.
func (o *Orchestrator) WithOrderCodes(f func() string) *Orchestrator {
	if f != nil {
		o.newOrderCode = f
	}
	return o
}

// HandleMessage processes one already-filtered inbound message. A closed or
// missing record starts a fresh conversation; an open one is continued. The
// whole read-modify-write turn holds the phone's lock.
func (o *Orchestrator) HandleMessage(ctx context.Context, phone, name, text string) error {
	release := o.locks.acquire(phone)
	defer release()

	rec, found, err := o.store.Load(ctx, phone)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if !found || !rec.IsOpen() {
		rec = o.newConversation(phone, name)
		log.Info().Str("phone", phone).Str("order_code", rec.OrderCode).Msg("conversation opened")
	}

	log.Debug().Str("phone", phone).Str("text", text).Msg("customer message")
	rec.Append(models.RoleUser, text)

	reply := o.complete(ctx, phone, rec.Messages)
	rec.Append(models.RoleAssistant, reply)
	log.Debug().Str("phone", phone).Str("text", reply).Msg("assistant reply")

	closing := rec.IsOpen() && strings.Contains(reply, prompt.ClosingTag(rec.OrderCode))

	// The closing tag is for the orchestrator, not the customer.
	outbound := reply
	if closing {
		outbound = stripTag(reply, prompt.ClosingTag(rec.OrderCode))
	}
	delayMs := int(o.replyDelay() / time.Millisecond)
	if err := o.sender.SendTextWithDelay(ctx, phone, outbound, delayMs); err != nil {
		// Turn dropped: nothing persisted, the customer may retry.
		return fmt.Errorf("send reply: %w", err)
	}

	if closing {
		rec.Status = models.StatusClosed
		rec.Append(models.RoleUser, prompt.SummaryRequest)
		rec.OrderSummary = o.complete(ctx, phone, rec.Messages)
		log.Info().Str("phone", phone).Str("order_code", rec.OrderCode).Msg("conversation closed")

		if o.archiver != nil {
			if err := o.archiver.SaveOrder(ctx, rec); err != nil {
				log.Error().Err(err).Str("order_code", rec.OrderCode).Msg("order archive failed")
			}
		}
	}

	if err := o.store.Save(ctx, phone, rec); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (o *Orchestrator) newConversation(phone, name string) models.ConversationRecord {
	code := o.newOrderCode()
	return models.ConversationRecord{
		Status:    models.StatusOpen,
		OrderCode: code,
		ChatAt:    o.now(),
		Customer:  models.Customer{Name: name, Phone: phone},
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: prompt.InitPrompt(o.storeName, code)},
		},
	}
}

// complete masks completion failures behind the fallback reply; the raw error
// only reaches the log.
func (o *Orchestrator) complete(ctx context.Context, phone string, msgs []models.ChatMessage) string {
	reply, err := o.completer.ChatCompletion(ctx, msgs)
	if err != nil {
		log.Error().Err(err).Str("phone", phone).Msg("completion failed")
		return FallbackReply
	}
	if strings.TrimSpace(reply) == "" {
		return emptyReply
	}
	return reply
}

func stripTag(text, tag string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, tag, ""))
}
