package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	CaptureDevice string // gocv device id ("0") or stream URL

	DetectorBackend string // "dnn" or "http"
	ModelPath       string
	ConfigPath      string
	LabelsPath      string
	InferenceURL    string

	ConfirmThreshold int     // Consecutive violent frames needed for a confirmed event
	ConfidenceCutoff float64 // A detection counts only strictly above this value

	DatabasePath string
	DatabaseURL  string // postgres:// URL; when set the pgx backend replaces sqlite

	OutputDirectory string // Local copy of confirmed frames, empty disables it
	StorageBackend  string // "s3" or "local"
	S3Bucket        string
	S3Region        string
	S3WebcamFolder  string
	S3VideoFolder   string

	CategoryWebcam string
	CategoryVideo  string
	SeedCategories bool // Create missing categories at startup

	ClassifyURL   string
	NotifyTimeout time.Duration
	MQTTBroker    string
	MQTTTopic     string
	MQTTClientID  string

	AuthURL   string
	JWTSecret string
	JWTExpiry time.Duration

	EvidenceQueueSize int
	EvidenceTimezone  string
	UploadMaxBytes    int64

	LogDirectory    string
	StaticDirectory string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// A missing .env is normal in containers.
	_ = godotenv.Load()

	return &Config{
		Port:          getEnvAsInt("PORT", 8000),
		CaptureDevice: getEnv("CAPTURE_DEVICE", "0"),

		DetectorBackend: getEnv("DETECTOR_BACKEND", "dnn"),
		ModelPath:       getEnv("MODEL_PATH", filepath.Join(".", "model", "best.onnx")),
		ConfigPath:      getEnv("CONFIG_PATH", ""),
		LabelsPath:      getEnv("LABELS_PATH", filepath.Join(".", "model", "labels.txt")),
		InferenceURL:    getEnv("INFERENCE_URL", "http://localhost:5000/predict"),

		ConfirmThreshold: getEnvAsInt("CONFIRM_THRESHOLD", 5),
		ConfidenceCutoff: getEnvAsFloat("CONFIDENCE_CUTOFF", 0.75),

		DatabasePath: getEnv("DB_PATH", filepath.Join(".", "data", "evidence.db")),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		OutputDirectory: getEnv("OUTPUT_DIR", filepath.Join(".", "output")),
		StorageBackend:  getEnv("STORAGE_BACKEND", "s3"),
		S3Bucket:        getEnv("S3_BUCKET", "poksin-evidence"),
		S3Region:        getEnv("S3_REGION", "ap-northeast-2"),
		S3WebcamFolder:  getEnv("S3_WEBCAM_FOLDER", "webcam"),
		S3VideoFolder:   getEnv("S3_VIDEO_FOLDER", "video"),

		CategoryWebcam: getEnv("CATEGORY_WEBCAM", "WEBCAM"),
		CategoryVideo:  getEnv("CATEGORY_VIDEO", "VIDEO"),
		SeedCategories: getEnvAsBool("SEED_CATEGORIES", true),

		ClassifyURL:   getEnv("CLASSIFY_URL", ""),
		NotifyTimeout: getEnvAsDuration("NOTIFY_TIMEOUT", 10*time.Second),
		MQTTBroker:    getEnv("MQTT_BROKER", ""),
		MQTTTopic:     getEnv("MQTT_TOPIC", "poksin/evidence"),
		MQTTClientID:  getEnv("MQTT_CLIENT_ID", "poksin-webcam"),

		AuthURL:   getEnv("AUTH_URL", "https://poksin-backend.store/login"),
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpiry: getEnvAsDuration("JWT_EXPIRY", 24*time.Hour),

		EvidenceQueueSize: getEnvAsInt("EVIDENCE_QUEUE_SIZE", 16),
		EvidenceTimezone:  getEnv("EVIDENCE_TIMEZONE", "Local"),
		UploadMaxBytes:    getEnvAsInt64("UPLOAD_MAX_BYTES", 200<<20),

		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		StaticDirectory: getEnv("STATIC_DIR", filepath.Join(".", "static")),
	}
}

// Location returns the time zone used for calendar-day evidence grouping.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.EvidenceTimezone)
}

// MediaDirectory is where the local storage backend keeps uploaded objects.
func (c *Config) MediaDirectory() string {
	return filepath.Join(filepath.Dir(filepath.Clean(c.DatabasePath)), "media")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
