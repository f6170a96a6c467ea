package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type ImpactServiceConfig struct {
	Port        string
	LogDir      string
	DBDriver    string
	SQLitePath  string
	PostgresCfg PostgresConfig
	RabbitMQCfg RabbitMQConfig
	RedisCfg    RedisConfig
	MinioCfg    MinioConfig
	CacheCfg    CacheConfig
	EngineCfg   EngineConfig
	WorkerCfg   WorkerConfig
}

type MinioConfig struct {
	Enabled        bool
	MinioURL       string
	MinioAccessKey string
	MinioSecretKey string
	MinioLocation  string
	MinioSecure    string
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RabbitMQConfig struct {
	Enabled  bool
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type CacheConfig struct {
	TTL          time.Duration
	LocalTTL     time.Duration
	WarmCron     string
	PublicMaxAge int
}

// TermWindow is a school term as month/day bounds within a calendar year.
type TermWindow struct {
	Name       string
	StartMonth time.Month
	StartDay   int
	EndMonth   time.Month
	EndDay     int
}

type FidelityWeights struct {
	CoachingCoverage     float64
	AssessmentCompliance float64
	TeachingQuality      float64
}

type EngineConfig struct {
	GeographyFile        string
	FiscalStartMonth     time.Month
	Terms                []TermWindow
	FidelityWeights      FidelityWeights
	ExpectedModules      map[string][]string
	Benchmarks           map[string]float64
	ObservationMax       float64
	StoreTimeout         time.Duration
	TrainingFollowUpDays int
}

type WorkerConfig struct {
	NumWorkers int
	QueueSize  int
}

// LoadEnvFile loads KEY=VALUE pairs from path into the environment. Values
// already set in the environment win. A missing file is not an error.
func LoadEnvFile(path string) {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("failed to load env file %s: %v", path, err)
	}
}

func New() *ImpactServiceConfig {
	return &ImpactServiceConfig{
		Port:       getEnvOrDefault("PORT", "8085"),
		LogDir:     getEnvOrDefault("LOG_DIR", "/impact/log/impact_service"),
		DBDriver:   strings.ToLower(getEnvOrDefault("DB_DRIVER", "sqlite")),
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "impact.db"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "impact"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RabbitMQCfg: RabbitMQConfig{
			Enabled:  getEnvBool("RABBITMQ_ENABLED", false),
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		RedisCfg: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		MinioCfg: MinioConfig{
			Enabled:        getEnvBool("MINIO_ENABLED", false),
			MinioURL:       getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9407"),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:  getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:    getEnvOrDefault("MINIO_SECURE", "false"),
		},
		CacheCfg: CacheConfig{
			TTL:          getEnvDuration("CACHE_TTL", 5*time.Minute),
			LocalTTL:     getEnvDuration("CACHE_LOCAL_TTL", time.Minute),
			WarmCron:     getEnvOrDefault("CACHE_WARM_CRON", "*/10 * * * *"),
			PublicMaxAge: getEnvInt("PUBLIC_CACHE_MAX_AGE", 300),
		},
		EngineCfg: EngineConfig{
			GeographyFile:    getEnvOrDefault("GEOGRAPHY_FILE", ""),
			FiscalStartMonth: time.Month(clampInt(getEnvInt("FISCAL_START_MONTH", 7), 1, 12)),
			Terms:            DefaultTerms(),
			FidelityWeights: FidelityWeights{
				CoachingCoverage:     getEnvFloat("FIDELITY_WEIGHT_COACHING", 0.4),
				AssessmentCompliance: getEnvFloat("FIDELITY_WEIGHT_ASSESSMENT", 0.3),
				TeachingQuality:      getEnvFloat("FIDELITY_WEIGHT_QUALITY", 0.3),
			},
			ExpectedModules: map[string][]string{
				"FY":   getEnvList("EXPECTED_MODULES_FY", []string{"training", "visit", "assessment"}),
				"TERM": getEnvList("EXPECTED_MODULES_TERM", []string{"visit", "assessment"}),
				"QTR":  getEnvList("EXPECTED_MODULES_QTR", []string{"visit"}),
			},
			Benchmarks:           DefaultBenchmarks(),
			ObservationMax:       getEnvFloat("OBSERVATION_RATING_MAX", 4),
			StoreTimeout:         getEnvDuration("STORE_TIMEOUT", 5*time.Second),
			TrainingFollowUpDays: getEnvInt("TRAINING_FOLLOW_UP_DAYS", 14),
		},
		WorkerCfg: WorkerConfig{
			NumWorkers: clampInt(getEnvInt("WARM_WORKERS", 2), 1, 16),
			QueueSize:  clampInt(getEnvInt("WARM_QUEUE_SIZE", 64), 1, 4096),
		},
	}
}

// DefaultTerms is the three-term school calendar.
func DefaultTerms() []TermWindow {
	return []TermWindow{
		{Name: "Term 1", StartMonth: time.February, StartDay: 1, EndMonth: time.April, EndDay: 30},
		{Name: "Term 2", StartMonth: time.May, StartDay: 20, EndMonth: time.August, EndDay: 15},
		{Name: "Term 3", StartMonth: time.September, StartDay: 5, EndMonth: time.December, EndDay: 5},
	}
}

// DefaultBenchmarks are the per-domain scores at or above which a learner
// is counted as meeting the benchmark.
func DefaultBenchmarks() map[string]float64 {
	return map[string]float64{
		"letterNames":   40,
		"letterSounds":  30,
		"realWords":     20,
		"madeUpWords":   15,
		"storyReading":  46,
		"comprehension": 4,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnvOrDefault(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnvOrDefault(key, ""))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getEnvList(key string, defaultValue []string) []string {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return defaultValue
	}
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
