package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Supported CART_STORE values.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
	StoreMongo    = "mongo"
)

const storeSecretName = "cart/STORE_CREDENTIALS"

type Config struct {
	Env         string
	ServiceName string
	Port        string
	GRPCPort    string

	// Storage
	StoreBackend    string `validate:"oneof=memory badger redis postgres dynamodb mongo"`
	CartCodec       string `validate:"oneof=proto json"`
	AtomicUpdates   bool
	CartTTL         time.Duration
	RedisURL        string
	BadgerDir       string
	PostgresDSN     string `validate:"required_if=StoreBackend postgres"`
	DynamoDBTable   string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	UseAWSSecrets   bool
	RequestTimeout  time.Duration

	// Statistics and diagnostics
	StatsFlushInterval     time.Duration `validate:"gt=0"`
	CartAccessLogInterval  time.Duration
	HealthLogInterval      time.Duration
	LargeCartThreshold     int
	LargeQuantityThreshold int32
	TopProducts            int `validate:"gt=0"`

	// Report sinks
	KafkaBrokers           []string
	KafkaTopic             string
	BusinessEventsSNSTopic string
	ReportArchiveBucket    string
	CloudWatchEnabled      bool

	// Inbound
	OrderEventsQueueURL string
	JWTSecret           string
	RateLimitPerMinute  int
	CORSAllowedOrigins  []string
}

// Load reads configuration from the environment, after loading an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:         getEnv("ENV", "development"),
		ServiceName: getEnv("SERVICE_NAME", "cart-service"),
		Port:        getEnv("PORT", "8086"),
		GRPCPort:    getEnv("GRPC_PORT", "7070"),

		StoreBackend:    strings.ToLower(getEnv("CART_STORE", StoreMemory)),
		CartCodec:       strings.ToLower(getEnv("CART_CODEC", "proto")),
		AtomicUpdates:   getBool("CART_ATOMIC_UPDATES", true),
		CartTTL:         getDuration("CART_TTL", 0),
		RedisURL:        getEnv("REDIS_URL", "redis://redis:6379"),
		BadgerDir:       getEnv("BADGER_DIR", "/var/lib/cart"),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		DynamoDBTable:   getEnv("DYNAMODB_TABLE", "carts"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://mongo:27017"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "cart"),
		MongoCollection: getEnv("MONGO_COLLECTION", "carts"),
		UseAWSSecrets:   getBool("AWS_USE_SECRETS", false),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),

		StatsFlushInterval:     getDuration("STATS_FLUSH_INTERVAL", 5*time.Minute),
		CartAccessLogInterval:  getDuration("CART_ACCESS_LOG_INTERVAL", 5*time.Minute),
		HealthLogInterval:      getDuration("HEALTH_LOG_INTERVAL", 180*time.Second),
		LargeCartThreshold:     getInt("LARGE_CART_THRESHOLD", 10),
		LargeQuantityThreshold: int32(getInt("LARGE_QUANTITY_THRESHOLD", 5)),
		TopProducts:            getInt("TOP_PRODUCTS", 5),

		KafkaBrokers:           getList("KAFKA_BROKERS"),
		KafkaTopic:             getEnv("KAFKA_TOPIC", "cart.business-events"),
		BusinessEventsSNSTopic: os.Getenv("BUSINESS_EVENTS_SNS_TOPIC_ARN"),
		ReportArchiveBucket:    os.Getenv("REPORT_ARCHIVE_BUCKET"),
		CloudWatchEnabled:      getBool("CLOUDWATCH_ENABLED", false),

		OrderEventsQueueURL: os.Getenv("ORDER_EVENTS_QUEUE_URL"),
		JWTSecret:           strings.TrimSpace(os.Getenv("JWT_SECRET")),
		RateLimitPerMinute:  getInt("RATE_LIMIT_PER_MINUTE", 600),
		CORSAllowedOrigins:  getList("CORS_ALLOWED_ORIGINS"),
	}
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.StoreBackend == StoreDynamoDB ||
		c.UseAWSSecrets ||
		c.CloudWatchEnabled ||
		c.BusinessEventsSNSTopic != "" ||
		c.ReportArchiveBucket != "" ||
		c.OrderEventsQueueURL != ""
}

// SecretSource is satisfied by *aws.SecretsClient.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// ApplySecrets overrides store credentials from Secrets Manager.
func (c *Config) ApplySecrets(ctx context.Context, secrets SecretSource) error {
	m, err := secrets.GetSecretMap(ctx, storeSecretName)
	if err != nil {
		return err
	}
	if v := m["REDIS_URL"]; v != "" {
		c.RedisURL = v
	}
	if v := m["POSTGRES_DSN"]; v != "" {
		c.PostgresDSN = v
	}
	if v := m["MONGO_URI"]; v != "" {
		c.MongoURI = v
	}
	return nil
}

var validate = validator.New()

// envKeys maps validated fields back to the variables they were read from.
var envKeys = map[string]string{
	"StoreBackend":       "CART_STORE",
	"CartCodec":          "CART_CODEC",
	"PostgresDSN":        "POSTGRES_DSN",
	"StatsFlushInterval": "STATS_FLUSH_INTERVAL",
	"TopProducts":        "TOP_PRODUCTS",
}

func (c *Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fe := verrs[0]
	key := envKeys[fe.Field()]
	switch fe.Tag() {
	case "oneof":
		return fmt.Errorf("unknown %s %q", key, fe.Value())
	case "required_if":
		return fmt.Errorf("%s is required for the postgres cart store", key)
	default:
		return fmt.Errorf("%s must be positive, got %v", key, fe.Value())
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
