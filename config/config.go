// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port               string
	DatabaseURL        string
	KMSKeyName         string
	GoogleCloudProject string
	LogLevel           string

	OtelEnabled      bool
	OtelEndpoint     string
	OtelServiceName  string
	OtelSamplingRate float64
	OtelInsecure     bool

	JWTSecret string

	// KEMAlgorithm は auto / ml-kem-768 / rsa-oaep-2048 のいずれか。
	KEMAlgorithm      string
	EphemeralKeyTTL   time.Duration
	ExchangeRateLimit float64 // 一時鍵発行の毎秒上限
	MaxUploadBytes    int64

	// S3Bucket が空の場合、暗号文はDBの file_blobs に保存する。
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		KMSKeyName:         os.Getenv("KMS_KEY_NAME"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),

		OtelEnabled:      getBool("OTEL_ENABLED", false),
		OtelEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OtelServiceName:  getEnv("OTEL_SERVICE_NAME", "secure-file-service"),
		OtelSamplingRate: getFloat("OTEL_SAMPLING_RATE", 1.0),
		OtelInsecure:     getBool("OTEL_EXPORTER_OTLP_INSECURE", false),

		JWTSecret: os.Getenv("JWT_SECRET"),

		KEMAlgorithm:      getEnv("KEM_ALGORITHM", "auto"),
		EphemeralKeyTTL:   getDuration("EPHEMERAL_KEY_TTL", 5*time.Minute),
		ExchangeRateLimit: getFloat("EXCHANGE_RATE_LIMIT", 5),
		MaxUploadBytes:    getInt("MAX_UPLOAD_BYTES", 100*1024*1024),

		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return v
}

func getFloat(key string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}
