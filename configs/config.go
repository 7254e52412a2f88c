package config

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avvvet/bingo-engine/internal/engine"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/gofrs/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var InstanceId string

// Config is the service configuration read from the environment.
type Config struct {
	PostgresURL  string
	NatsURL      string
	NatsToken    string
	MongoURI     string
	JWTSecret    string
	Port         string
	RateLimit    int
	AllowOrigins []string

	Engine          engine.Config
	TickInterval    time.Duration
	BetAmount       decimal.Decimal
	MaxTickFailures int
	ResumeWindow    time.Duration
	StatusTTL       time.Duration

	LogLevel string
	LogDir   string
}

func setDefaults(v *viper.Viper) {
	d := engine.DefaultConfig()
	v.SetDefault("NATS_URL", "nats://localhost:4224")
	v.SetDefault("ENGINE_PORT", "8088")
	v.SetDefault("RATE_LIMIT", 120)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("SELECTION_WINDOW", d.SelectionWindow)
	v.SetDefault("CALL_INTERVAL", d.CallInterval)
	v.SetDefault("COOLDOWN", d.Cooldown)
	v.SetDefault("TICK_INTERVAL", time.Second)
	v.SetDefault("PRIZE_RATE", d.PrizeRate.String())
	v.SetDefault("HOUSE_ACCOUNT", d.HouseAccount)
	v.SetDefault("BET_AMOUNT", "10")
	v.SetDefault("MAX_TICK_FAILURES", 10)
	v.SetDefault("RESUME_WINDOW", 5*time.Minute)
	v.SetDefault("SYNC_EVERY", d.SyncEvery)
	v.SetDefault("ROUND_CACHE_TTL", d.RoundCacheTTL)
	v.SetDefault("STATUS_TTL", 30*time.Second)
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads the configuration from the process environment. Call
// LoadEnv first to pick up a .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	rate, err := decimal.NewFromString(v.GetString("PRIZE_RATE"))
	if err != nil {
		return nil, fmt.Errorf("PRIZE_RATE: %w", err)
	}
	bet, err := decimal.NewFromString(v.GetString("BET_AMOUNT"))
	if err != nil {
		return nil, fmt.Errorf("BET_AMOUNT: %w", err)
	}
	if !bet.IsPositive() {
		return nil, fmt.Errorf("BET_AMOUNT must be positive, got %s", bet)
	}

	cfg := &Config{
		PostgresURL:  v.GetString("POSTGRES_URL"),
		NatsURL:      v.GetString("NATS_URL"),
		NatsToken:    v.GetString("NATS_TOKEN"),
		MongoURI:     v.GetString("MONGODB_URI"),
		JWTSecret:    v.GetString("JWT_SECRET_KEY"),
		Port:         v.GetString("ENGINE_PORT"),
		RateLimit:    v.GetInt("RATE_LIMIT"),
		AllowOrigins: splitList(v.GetString("CORS_ORIGINS")),
		Engine: engine.Config{
			SelectionWindow: v.GetDuration("SELECTION_WINDOW"),
			CallInterval:    v.GetDuration("CALL_INTERVAL"),
			Cooldown:        v.GetDuration("COOLDOWN"),
			PrizeRate:       rate,
			HouseAccount:    v.GetString("HOUSE_ACCOUNT"),
			SyncEvery:       v.GetInt("SYNC_EVERY"),
			RoundCacheTTL:   v.GetDuration("ROUND_CACHE_TTL"),
		},
		TickInterval:    engine.ClampInterval(v.GetDuration("TICK_INTERVAL")),
		BetAmount:       bet,
		MaxTickFailures: v.GetInt("MAX_TICK_FAILURES"),
		ResumeWindow:    v.GetDuration("RESUME_WINDOW"),
		StatusTTL:       v.GetDuration("STATUS_TTL"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogDir:          v.GetString("LOG_DIR"),
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}
	if cfg.RateLimit <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT must be positive, got %d", cfg.RateLimit)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadEnv loads ./.env when present; the process environment wins.
func LoadEnv(service string) {
	log.Infof("%s configuration and env variables loading started ...", service)
	err := godotenv.Load("./.env")
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("unable to read .env file: %s", err)
		}
		return
	}

	log.Info(".env file loaded.")
}

func CreateUniqueInstance(service string) (string, error) {
	id, err := uuid.NewV4() // instance identifier
	if err != nil {
		return "", fmt.Errorf("generating instance id: %w", err)
	}
	InstanceId = id.String()
	log.Infof(service+" service with Instance ID: %s is ready", id)
	return id.String(), nil
}

func GetInstanceId() string {
	return InstanceId
}

func CORS(origins []string) *cors.Cors {
	corsOptions := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return corsOptions
}

// Logging sets the log level and, when dir is set, sends logs to
// <dir>/<service>.log instead of stdout.
func Logging(service, dir, level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(lvl)

	if dir == "" {
		log.SetOutput(os.Stdout)
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("unable to create folder for log: %w", err)
	}

	logFilePath := filepath.Join(dir, service+".log")
	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(file)

	log.Infof("log to file started for service: %s", service)
	return nil
}

func CustomLoggerMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.WithFields(log.Fields{
					"method":   r.Method,
					"uri":      r.RequestURI,
					"remote":   r.RemoteAddr,
					"status":   ww.Status(),
					"duration": time.Since(start),
					"req_id":   middleware.GetReqID(r.Context()),
				}).Info(http.StatusText(ww.Status()))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
