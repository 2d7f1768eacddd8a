package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 애플리케이션 전체 설정
type Config struct {
	Server   ServerConfig
	CORS     CORSConfig
	Database DatabaseConfig
	Supabase SupabaseConfig
	LiveKit  LiveKitConfig
	Redis    RedisConfig
	S3       S3Config
	Sentry   SentryConfig
	Meeting  MeetingConfig
	Signup   SignupConfig
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port         string
	Environment  string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	StoreDriver  string // postgres | memory
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// DatabaseConfig 데이터베이스 설정
type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// SupabaseConfig 인증 제공자(Supabase GoTrue) 설정
type SupabaseConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	JWTSecret      string
	SecureCookie   bool
}

// LiveKitConfig LiveKit 설정
type LiveKitConfig struct {
	Host         string
	APIKey       string
	APISecret    string
	TokenTTL     time.Duration
	EmptyTimeout time.Duration
}

// RedisConfig Redis 설정
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	ChatTTL  time.Duration
}

// S3Config 오브젝트 스토리지 설정
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PresignExpiry   time.Duration
	Buckets         map[string]string // 논리 버킷 이름 -> 실제 S3 버킷
}

// SentryConfig 에러 리포팅 설정
type SentryConfig struct {
	DSN              string
	TracesSampleRate float64
}

// MeetingConfig 미팅 라이프사이클 설정
type MeetingConfig struct {
	RingTimeout     time.Duration
	SweepInterval   time.Duration
	ExternalTimeout time.Duration
}

// SignupConfig 회원가입 프로필 대기 설정
type SignupConfig struct {
	ProfileWaitRetries  int
	ProfileWaitInterval time.Duration
}

// Load 환경 변수에서 설정 로드
func Load() *Config {
	// .env 파일 로드 (없어도 에러 무시)
	if err := godotenv.Load(); err != nil {
		slog.Info("ℹ️ No .env file found, using environment variables")
	}

	storeDriver := getEnv("STORE_DRIVER", "postgres")
	supabaseURL := getEnv("SUPABASE_URL", "")
	if storeDriver != "memory" {
		supabaseURL = getRequiredEnv("SUPABASE_URL")
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8000"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
			StoreDriver:  storeDriver,
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
			AllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept, Authorization"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "postgres"),
			SSLMode:         getEnv("DB_SSLMODE", "require"),
			TimeZone:        getEnv("DB_TIMEZONE", "UTC"),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Supabase: SupabaseConfig{
			URL:            strings.TrimRight(supabaseURL, "/"),
			AnonKey:        getEnv("SUPABASE_ANON_KEY", ""),
			ServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
			SecureCookie:   getBool("SECURE_COOKIE", false),
		},
		LiveKit: LiveKitConfig{
			Host:         getEnv("LIVEKIT_URL", "ws://localhost:7880"),
			APIKey:       getEnv("LIVEKIT_API_KEY", "devkey"),
			APISecret:    getEnv("LIVEKIT_API_SECRET", "secret"),
			TokenTTL:     getDuration("LIVEKIT_TOKEN_TTL", 6*time.Hour),
			EmptyTimeout: getDuration("LIVEKIT_EMPTY_TIMEOUT", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			ChatTTL:  getDuration("CHAT_TTL", 24*time.Hour),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "ap-northeast-2"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getBool("S3_USE_PATH_STYLE", false),
			PresignExpiry:   getDuration("S3_PRESIGN_EXPIRY", 15*time.Minute),
			Buckets:         getBucketMap("S3_BUCKETS"),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			TracesSampleRate: getFloat("SENTRY_TRACES_SAMPLE_RATE", 0),
		},
		Meeting: MeetingConfig{
			RingTimeout:     getDuration("MEETING_RING_TIMEOUT", 45*time.Second),
			SweepInterval:   getDuration("MEETING_SWEEP_INTERVAL", 15*time.Second),
			ExternalTimeout: getDuration("MEETING_EXTERNAL_TIMEOUT", 5*time.Second),
		},
		Signup: SignupConfig{
			ProfileWaitRetries:  getInt("SIGNUP_PROFILE_WAIT_RETRIES", 10),
			ProfileWaitInterval: getDuration("SIGNUP_PROFILE_WAIT_INTERVAL", 300*time.Millisecond),
		},
	}
}

// IsDevelopment 개발 모드 여부 (에러 상세 노출)
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, "development")
}

// SlogLevel LOG_LEVEL 문자열을 slog 레벨로 변환
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getRequiredEnv 필수 환경 변수 조회 (없으면 종료)
func getRequiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		slog.Error("🚨 CRITICAL: required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return value
}

// getEnv 환경 변수 조회 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt 정수형 환경 변수 조회
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getBool 불리언 환경 변수 조회
func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getDuration 시간 환경 변수 조회
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		// 숫자만 있으면 초로 간주
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getBucketMap "avatars=prod-avatars,chat-files=prod-chat" 형식 파싱
// 매핑이 없는 논리 버킷은 이름 그대로 사용
func getBucketMap(key string) map[string]string {
	buckets := map[string]string{}
	for _, pair := range strings.Split(os.Getenv(key), ",") {
		name, target, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" || target == "" {
			continue
		}
		buckets[strings.TrimSpace(name)] = strings.TrimSpace(target)
	}
	return buckets
}
