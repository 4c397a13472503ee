package config

import (
	"os"
	"strconv"
)

type Config struct {
	AppPort       string
	DBDSN         string
	JWTSecret     string
	JWTExpiresMin int

	RedisAddr     string
	RedisPassword string

	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string

	EmailProvider string // log | ses
	SMSProvider   string // log | sns
	EmailFrom     string
	AWSRegion     string

	CleanupSchedule string // cron spec for the expired-token sweep
}

func Load() Config {
	expires, _ := strconv.Atoi(get("JWT_EXPIRES_MIN", "10080"))
	return Config{
		AppPort:         get("APP_PORT", "8080"),
		DBDSN:           must("DB_DSN"),
		JWTSecret:       must("JWT_SECRET"),
		JWTExpiresMin:   expires,
		RedisAddr:       get("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   get("REDIS_PASSWORD", ""),
		GoogleClientID:  get("GOOGLE_CLIENT_ID", ""),
		GoogleSecret:    get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirect:  get("GOOGLE_REDIRECT_URL", ""),
		FrontendBaseURL: get("FRONTEND_BASE_URL", "http://localhost:3000"),
		EmailProvider:   get("EMAIL_PROVIDER", "log"),
		SMSProvider:     get("SMS_PROVIDER", "log"),
		EmailFrom:       get("EMAIL_FROM", "no-reply@taskerin.id"),
		AWSRegion:       get("AWS_REGION", "ap-southeast-1"),
		CleanupSchedule: get("CLEANUP_SCHEDULE", "@hourly"),
	}
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
