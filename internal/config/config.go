package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string

	DynamoTables DynamoTables
	S3BucketName string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	SNSRegion string

	// OTP challenge policy.
	OTPTTL           time.Duration
	MaxOTPAttempts   int
	MaxLoginFailures int
	LockDuration     time.Duration

	// ExposeChallengeCode downgrades SMS delivery failures to a success
	// response carrying the code in-band. Diagnostic use only; never enable
	// in production.
	ExposeChallengeCode bool

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users          string
	HealthRecords  string
	MedicalReports string
	QRCodes        string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "5002"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "ap-south-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),

		DynamoTables: DynamoTables{
			Users:          getEnv("DYNAMO_TABLE_USERS", "users"),
			HealthRecords:  getEnv("DYNAMO_TABLE_HEALTH_RECORDS", "health_records"),
			MedicalReports: getEnv("DYNAMO_TABLE_MEDICAL_REPORTS", "medical_reports"),
			QRCodes:        getEnv("DYNAMO_TABLE_QR_CODES", "qr_codes"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "migrant-health-reports"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,

		SNSRegion: getEnv("SNS_REGION", "ap-south-1"),

		OTPTTL:           time.Duration(getEnvInt("OTP_TTL_MINUTES", 10)) * time.Minute,
		MaxOTPAttempts:   getEnvInt("MAX_OTP_ATTEMPTS", 3),
		MaxLoginFailures: getEnvInt("MAX_LOGIN_FAILURES", 5),
		LockDuration:     time.Duration(getEnvInt("LOCK_DURATION_MINUTES", 120)) * time.Minute,

		ExposeChallengeCode: getEnvBool("EXPOSE_CHALLENGE_CODE", false),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
