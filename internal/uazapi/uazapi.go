package uazapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

/*
Cliente Uazapi para envio de texto via POST /send/text.

- Headers: token + convert:true
- delay (ms) aciona o indicador "Digitando..." no aparelho do cliente.
- Instâncias divergem no caminho exato do endpoint; tentamos uma lista de
  caminhos conhecidos até um responder 2xx.
*/

type Client struct {
	baseSend  string
	tokenSend string
	http      *http.Client

	maxRetries   int
	backoff      time.Duration
	logReq       bool
	minVisibleMs int // mínimo de delay para garantir o "Digitando..." visível
	textPaths    []string
}

func New(baseSend, tokenSend string) *Client {
	return &Client{
		baseSend:     strings.TrimRight(baseSend, "/"),
		tokenSend:    tokenSend,
		http:         &http.Client{Timeout: 30 * time.Second},
		maxRetries:   3,
		backoff:      250 * time.Millisecond,
		minVisibleMs: 1000,
	}
}

func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.http = h
	}
	return c
}
func (c *Client) WithRetry(maxRetries int, backoff time.Duration) *Client {
	if maxRetries >= 0 {
		c.maxRetries = maxRetries
	}
	if backoff > 0 {
		c.backoff = backoff
	}
	return c
}
func (c *Client) WithLogging(enabled bool) *Client {
	c.logReq = enabled
	return c
}
func (c *Client) WithMinVisibleDelay(ms int) *Client {
	if ms > 0 {
		c.minVisibleMs = ms
	}
	return c
}

// WithTextPaths overrides the endpoint fallback list (tests).
func (c *Client) WithTextPaths(paths ...string) *Client {
	if len(paths) > 0 {
		c.textPaths = paths
	}
	return c
}

// ----------------- helpers -----------------

func joinURL(base, path string) string {
	b := strings.TrimRight(base, "/")
	p := path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if strings.HasSuffix(b, "/api") && strings.HasPrefix(p, "/api/") {
		p = strings.TrimPrefix(p, "/api")
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
	}
	return b + p
}

func (c *Client) doJSONOnce(ctx context.Context, url string, body any) (int, []byte, error) {
	buf, _ := json.Marshal(body)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("token", c.tokenSend)
	req.Header.Set("convert", "true") // muitas instâncias exigem

	if c.logReq {
		log.Debug().Str("url", url).Msg("uazapi POST")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *Client) doJSONWithRetry(ctx context.Context, url string, body any) (int, []byte, error) {
	for try := 1; ; try++ {
		code, b, err := c.doJSONOnce(ctx, url, body)
		if err != nil {
			if try <= c.maxRetries && isRetryableNetErr(err) {
				time.Sleep(c.backoff * time.Duration(try))
				continue
			}
			return 0, nil, err
		}
		if code >= 200 && code < 300 {
			return code, b, nil
		}
		if code >= 500 && code <= 599 && try <= c.maxRetries {
			time.Sleep(c.backoff * time.Duration(try))
			continue
		}
		return code, b, nil
	}
}

func isRetryableNetErr(err error) bool {
	if err == nil {
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection reset") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "unexpected eof")
}

func onlyDigits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch >= '0' && ch <= '9' {
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func makeChatID(jidOrNumber string) (number string, chatID string) {
	if strings.Contains(jidOrNumber, "@") {
		return onlyDigits(jidOrNumber), jidOrNumber
	}
	num := onlyDigits(jidOrNumber)
	return num, num + "@s.whatsapp.net"
}

// ----------------- sending -----------------

var defaultTextPaths = []string{
	"/send/text", // docs mostram 'send~text', mas o caminho HTTP real é /send/text
	"/api/send/text",
	"/send-text",
	"/api/send-text",
	"/message/text",
	"/api/message/text",
}

// SendText envia sem delay.
func (c *Client) SendText(ctx context.Context, number, text string) error {
	return c.SendTextWithDelay(ctx, number, text, 0)
}

// SendTextWithDelay envia texto com delay (ms) para simular digitação.
func (c *Client) SendTextWithDelay(ctx context.Context, jidOrNumber, text string, delayMs int) error {
	number, chatID := makeChatID(jidOrNumber)

	body := map[string]any{
		"number":      number,
		"text":        text,
		"chatId":      chatID,
		"chatid":      chatID,
		"readchat":    true,
		"linkPreview": false,
	}

	// garante um mínimo visível
	if delayMs > 0 {
		if delayMs < c.minVisibleMs {
			delayMs = c.minVisibleMs
		}
		body["delay"] = delayMs
		body["typing"] = true
		body["typingTime"] = delayMs
	}

	paths := c.textPaths
	if len(paths) == 0 {
		paths = defaultTextPaths
	}

	var lastCode int
	var lastBody []byte
	var lastErr error

	for _, p := range paths {
		url := joinURL(c.baseSend, p)
		code, b, err := c.doJSONWithRetry(ctx, url, body)
		if err == nil && code >= 200 && code < 300 {
			return nil
		}
		lastCode, lastBody, lastErr = code, b, err
	}

	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("uazapi send text %d: %s", lastCode, string(lastBody))
}

// SendTextAfter envia texto já com delay server-side.
func (c *Client) SendTextAfter(ctx context.Context, jidOrNumber, text string, d time.Duration) error {
	return c.SendTextWithDelay(ctx, jidOrNumber, text, int(d/time.Millisecond))
}
