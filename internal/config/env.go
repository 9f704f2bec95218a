package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Env struct {
	AppAddr string
	GinMode string

	DBUser        string
	DBPassword    string
	DBHost        string
	DBName        string
	DBAutoMigrate bool

	ReferencePrefix      string
	ReferenceMaxAttempts int
	MobileMoneyFeeBps    int64
	LoyaltyXAFPerPoint   int64

	PaymentMode         string
	PaymentPollInterval time.Duration
	PaymentPollTimeout  time.Duration
	PendingBookingTTL   time.Duration
	ExpiryScanInterval  time.Duration
	StatusCacheTTL      time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL    string
	NotifySMSURL   string
	NotifyEmailURL string

	MTN    MTNEnv
	Airtel AirtelEnv

	CORSAllowedOrigins []string
}

// MTNEnv holds MoMo Collection API credentials.
type MTNEnv struct {
	BaseURL         string
	UserID          string
	APIKey          string
	SubscriptionKey string
	TargetEnv       string
	Currency        string
}

type AirtelEnv struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Country      string
	Currency     string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ADDR", ":8080")
	v.SetDefault("GIN_MODE", "")
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_HOST", "127.0.0.1:3306")
	v.SetDefault("DB_NAME", "bus_booking")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("REFERENCE_PREFIX", "ODN")
	v.SetDefault("REFERENCE_MAX_ATTEMPTS", 5)
	v.SetDefault("MOBILE_MONEY_FEE_BPS", 200)
	v.SetDefault("LOYALTY_XAF_PER_POINT", 100)
	v.SetDefault("PAYMENT_MODE", "sandbox")
	v.SetDefault("PAYMENT_POLL_INTERVAL", "3s")
	v.SetDefault("PAYMENT_POLL_TIMEOUT", "2m")
	v.SetDefault("PENDING_BOOKING_TTL", "15m")
	v.SetDefault("EXPIRY_SCAN_INTERVAL", "1m")
	v.SetDefault("STATUS_CACHE_TTL", "2s")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_TTL", "12h")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MTN_BASE_URL", "https://sandbox.momodeveloper.mtn.com")
	v.SetDefault("MTN_TARGET_ENV", "sandbox")
	v.SetDefault("MTN_CURRENCY", "XAF")
	v.SetDefault("AIRTEL_BASE_URL", "https://openapiuat.airtel.africa")
	v.SetDefault("AIRTEL_COUNTRY", "CG")
	v.SetDefault("AIRTEL_CURRENCY", "XAF")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173")
}

// LoadEnv reads .env (when present) and the process environment.
func LoadEnv() Env {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) Env {
	env := Env{
		AppAddr: strings.TrimSpace(v.GetString("APP_ADDR")),
		GinMode: strings.TrimSpace(v.GetString("GIN_MODE")),

		DBUser:        v.GetString("DB_USER"),
		DBPassword:    v.GetString("DB_PASSWORD"),
		DBHost:        v.GetString("DB_HOST"),
		DBName:        v.GetString("DB_NAME"),
		DBAutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),

		ReferencePrefix:      strings.ToUpper(strings.TrimSpace(v.GetString("REFERENCE_PREFIX"))),
		ReferenceMaxAttempts: v.GetInt("REFERENCE_MAX_ATTEMPTS"),
		MobileMoneyFeeBps:    v.GetInt64("MOBILE_MONEY_FEE_BPS"),
		LoyaltyXAFPerPoint:   v.GetInt64("LOYALTY_XAF_PER_POINT"),

		PaymentMode:         strings.ToLower(strings.TrimSpace(v.GetString("PAYMENT_MODE"))),
		PaymentPollInterval: v.GetDuration("PAYMENT_POLL_INTERVAL"),
		PaymentPollTimeout:  v.GetDuration("PAYMENT_POLL_TIMEOUT"),
		PendingBookingTTL:   v.GetDuration("PENDING_BOOKING_TTL"),
		ExpiryScanInterval:  v.GetDuration("EXPIRY_SCAN_INTERVAL"),
		StatusCacheTTL:      v.GetDuration("STATUS_CACHE_TTL"),

		JWTSecret: v.GetString("JWT_SECRET"),
		JWTTTL:    v.GetDuration("JWT_TTL"),

		RedisAddr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		RabbitMQURL:    strings.TrimSpace(v.GetString("RABBITMQ_URL")),
		NotifySMSURL:   strings.TrimSpace(v.GetString("NOTIFY_SMS_URL")),
		NotifyEmailURL: strings.TrimSpace(v.GetString("NOTIFY_EMAIL_URL")),

		MTN: MTNEnv{
			BaseURL:         strings.TrimRight(v.GetString("MTN_BASE_URL"), "/"),
			UserID:          v.GetString("MTN_USER_ID"),
			APIKey:          v.GetString("MTN_API_KEY"),
			SubscriptionKey: v.GetString("MTN_SUBSCRIPTION_KEY"),
			TargetEnv:       v.GetString("MTN_TARGET_ENV"),
			Currency:        v.GetString("MTN_CURRENCY"),
		},
		Airtel: AirtelEnv{
			BaseURL:      strings.TrimRight(v.GetString("AIRTEL_BASE_URL"), "/"),
			ClientID:     v.GetString("AIRTEL_CLIENT_ID"),
			ClientSecret: v.GetString("AIRTEL_CLIENT_SECRET"),
			Country:      v.GetString("AIRTEL_COUNTRY"),
			Currency:     v.GetString("AIRTEL_CURRENCY"),
		},
	}

	for _, o := range strings.Split(v.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			env.CORSAllowedOrigins = append(env.CORSAllowedOrigins, o)
		}
	}

	if env.AppAddr == "" {
		env.AppAddr = ":8080"
	}
	if env.ReferencePrefix == "" {
		env.ReferencePrefix = "ODN"
	}
	if env.ReferenceMaxAttempts <= 0 {
		env.ReferenceMaxAttempts = 5
	}
	return env
}
