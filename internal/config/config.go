package config

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"bizdash/backend/internal/sheets"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	LocalCachePath        string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	SheetsTransactionsURL string
	SheetsCustomersURL    string
	SheetsProductsURL     string
	SheetsTransport       string
	SheetsProxyURL        string
	SheetsOrigin          string
	SheetsTimeoutSeconds  int
	AuthSecret            string
	AccessTokenTTLMinutes int
	LogFile               string
}

// Load reads the process environment, after filling it from a .env file in
// the working directory when one exists. Variables already set win over .env.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] WARN: .env not loaded: %v", err)
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	sheetsTimeout, err := strconv.Atoi(getEnv("SHEETS_TIMEOUT_SECONDS", "30"))
	if err != nil || sheetsTimeout < 1 {
		sheetsTimeout = 30
	}

	return Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		LocalCachePath:        getEnv("LOCAL_CACHE_PATH", "dashboard-cache.db"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		SheetsTransactionsURL: strings.TrimSpace(os.Getenv("SHEETS_TRANSACTIONS_URL")),
		SheetsCustomersURL:    strings.TrimSpace(os.Getenv("SHEETS_CUSTOMERS_URL")),
		SheetsProductsURL:     strings.TrimSpace(os.Getenv("SHEETS_PRODUCTS_URL")),
		SheetsTransport:       strings.ToLower(getEnv("SHEETS_TRANSPORT", "direct")),
		SheetsProxyURL:        getEnv("SHEETS_PROXY_URL", "https://corsproxy.io/?"),
		SheetsOrigin:          getEnv("SHEETS_ORIGIN", "http://localhost"),
		SheetsTimeoutSeconds:  sheetsTimeout,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		LogFile:               strings.TrimSpace(os.Getenv("LOG_FILE")),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) SheetsTimeout() time.Duration {
	return time.Duration(c.SheetsTimeoutSeconds) * time.Second
}

// Sheets builds the spreadsheet client configuration. An unknown transport
// name falls back to direct.
func (c Config) Sheets() sheets.Config {
	strategy, err := sheets.ParseStrategy(c.SheetsTransport)
	if err != nil {
		log.Printf("[config] WARN: %v, using %s", err, sheets.StrategyDirect)
		strategy = sheets.StrategyDirect
	}
	return sheets.Config{
		TransactionsURL: c.SheetsTransactionsURL,
		CustomersURL:    c.SheetsCustomersURL,
		InventoryURL:    c.SheetsProductsURL,
		Strategy:        strategy,
		ProxyPrefix:     c.SheetsProxyURL,
		Origin:          c.SheetsOrigin,
		FrameTimeout:    c.SheetsTimeout(),
		HTTPClient:      &http.Client{Timeout: c.SheetsTimeout()},
	}
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
