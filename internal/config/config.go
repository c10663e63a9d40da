package config

import (
	crand "crypto/rand"
	"log"
	"math/big"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string
	WebhookPath string
	SessionName string

	// Nome da pizzaria usado no prompt do sistema.
	StoreName string

	OpenAIAPIKey    string
	OpenAIChatModel string
	OpenAIMaxTokens int

	UazapiBaseSend  string
	UazapiTokenSend string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Arquivo de pedidos fechados (Postgres). Vazio desabilita.
	DatabaseURL string

	LogLevel  string
	LogFormat string

	// Timeout do buffer (segundos) via ENV: BUFFER_TIMEOUT_SECONDS. 0 desativa.
	BufferTimeoutSeconds int

	// Delay mínimo/máximo (ms) antes de responder. Se ambos 0, não há atraso.
	ReplyDelayMinMs int // ENV: REPLY_DELAY_MIN_MS (ex.: 1500)
	ReplyDelayMaxMs int // ENV: REPLY_DELAY_MAX_MS (ex.: 3500)
}

// getenv retorna o valor do env var ou um default.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

func Load() Config {
	session := getenv("SESSION_NAME", "food-gpt")

	cfg := Config{
		Addr:        getenv("APP_ADDR", ":8080"),
		SessionName: session,
		WebhookPath: getenv("WEBHOOK_PATH", "/webhook/"+session),
		StoreName:   getenv("STORE_NAME", "Pizzaria Los Italianos"),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIChatModel: getenv("OPENAI_CHAT_MODEL", "gpt-3.5-turbo"),
		OpenAIMaxTokens: getenvInt("OPENAI_MAX_TOKENS", 256),

		UazapiBaseSend:  os.Getenv("UAZAPI_BASE_SEND"),
		UazapiTokenSend: os.Getenv("UAZAPI_TOKEN_SEND"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getenvInt("REDIS_DB", 0),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "console"),
	}

	// Buffer timeout (segundos) — default 5, 0 desativa o debounce
	cfg.BufferTimeoutSeconds = getenvInt("BUFFER_TIMEOUT_SECONDS", 5)
	if cfg.BufferTimeoutSeconds < 0 {
		cfg.BufferTimeoutSeconds = 0
	}

	cfg.ReplyDelayMinMs = getenvInt("REPLY_DELAY_MIN_MS", 0)
	cfg.ReplyDelayMaxMs = getenvInt("REPLY_DELAY_MAX_MS", 0)

	// Normaliza limites
	if cfg.ReplyDelayMinMs < 0 {
		cfg.ReplyDelayMinMs = 0
	}
	if cfg.ReplyDelayMaxMs < 0 {
		cfg.ReplyDelayMaxMs = 0
	}
	if cfg.ReplyDelayMaxMs > 0 && cfg.ReplyDelayMaxMs < cfg.ReplyDelayMinMs {
		cfg.ReplyDelayMaxMs = cfg.ReplyDelayMinMs
	}

	// Guard rails
	if cfg.OpenAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY is required")
	}
	if cfg.UazapiBaseSend == "" || cfg.UazapiTokenSend == "" {
		log.Fatal("UAZAPI_BASE_SEND and UAZAPI_TOKEN_SEND are required")
	}
	return cfg
}

// ReplyDelay retorna a duração de espera antes de responder, aplicando jitter
// uniforme. Se Min/Max forem 0, retorna 0 (sem atraso).
func (c Config) ReplyDelay() time.Duration {
	min := c.ReplyDelayMinMs
	max := c.ReplyDelayMaxMs
	if min <= 0 && max <= 0 {
		return 0
	}
	if max < min {
		max = min
	}
	// sorteio criptograficamente seguro (evita races do math/rand)
	ms := min
	if max > min {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(max-min+1)))
		if err == nil {
			ms = min + int(n.Int64())
		}
	}
	return time.Duration(ms) * time.Millisecond
}
