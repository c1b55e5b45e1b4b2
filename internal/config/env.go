package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/local/docjanitor/internal/retention"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// PathsConfig names the managed directories.
type PathsConfig struct {
	UploadDir  string
	ResultsDir string
	TempDir    string
}

// RetentionConfig carries env-sourced retention overrides. Unset or
// unparsable values stay nil so policy defaults survive.
type RetentionConfig struct {
	UploadMaxAgeDays      *int
	ResultMaxAgeDays      *int
	TempFileMaxAgeHours   *int
	RemoveAfterProcessing *bool
	ConsiderLastAccess    *bool
	ExemptExtensions      []string
	ExemptTags            []string
}

// DiskConfig defines the free-space alert thresholds (percent ceilings).
type DiskConfig struct {
	WarningPercent   float64
	CriticalPercent  float64
	EmergencyPercent float64
}

// MailConfig defines the alert email transport.
type MailConfig struct {
	Enabled  bool
	Server   string
	Port     int
	User     string
	Password string
	From     string
	To       []string
	UseTLS   bool
}

// ArchiveConfig defines optional S3 archiving before destructive deletes.
type ArchiveConfig struct {
	Enabled   bool
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
}

// LockConfig defines the cross-process cleanup run lock.
type LockConfig struct {
	RedisURL string
	TTL      time.Duration
}

// ScheduleConfig defines the daemon cron expressions.
type ScheduleConfig struct {
	Cleanup   string
	DiskCheck string
}

// Config is the top-level configuration.
type Config struct {
	Logging   LoggingConfig
	Axiom     AxiomConfig
	Paths     PathsConfig
	Retention RetentionConfig
	Disk      DiskConfig
	Mail      MailConfig
	Archive   ArchiveConfig
	Lock      LockConfig
	Schedule  ScheduleConfig
	Port      string
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/docjanitor.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_docjanitor",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Paths = PathsConfig{
		UploadDir:  getEnv("UPLOAD_DIR", "uploads"),
		ResultsDir: getEnv("RESULTS_DIR", "uploads/results"),
		TempDir:    getEnv("TEMP_DIR", ""),
	}

	cfg.Retention = RetentionConfig{
		UploadMaxAgeDays:      parseOptUint(os.Getenv("RETENTION_UPLOADS_MAX_AGE_DAYS")),
		ResultMaxAgeDays:      parseOptUint(os.Getenv("RETENTION_RESULTS_MAX_AGE_DAYS")),
		TempFileMaxAgeHours:   parseOptUint(os.Getenv("RETENTION_TEMP_FILES_MAX_AGE_HOURS")),
		RemoveAfterProcessing: parseOptBool(os.Getenv("RETENTION_REMOVE_AFTER_PROCESSING")),
		ConsiderLastAccess:    parseOptBool(os.Getenv("RETENTION_CONSIDER_LAST_ACCESS")),
		ExemptExtensions:      parseList(os.Getenv("RETENTION_EXEMPT_EXTENSIONS")),
		ExemptTags:            parseList(os.Getenv("RETENTION_EXEMPT_TAGS")),
	}

	cfg.Disk = DiskConfig{
		WarningPercent:   parseFloat(getEnv("DISK_WARNING_PERCENT", "20"), 20),
		CriticalPercent:  parseFloat(getEnv("DISK_CRITICAL_PERCENT", "10"), 10),
		EmergencyPercent: parseFloat(getEnv("DISK_EMERGENCY_PERCENT", "5"), 5),
	}

	cfg.Mail = MailConfig{
		Enabled:  parseBool(getEnv("ALERT_EMAIL_ENABLED", "0")),
		Server:   getEnv("SMTP_SERVER", "smtp.example.com"),
		Port:     parseInt(getEnv("SMTP_PORT", "587"), 587),
		User:     getEnv("SMTP_USER", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("ALERT_FROM_EMAIL", "docjanitor@example.com"),
		To:       parseList(getEnv("ALERT_TO_EMAILS", "admin@example.com")),
		UseTLS:   parseBool(getEnv("SMTP_USE_TLS", "true")),
	}

	cfg.Archive = ArchiveConfig{
		Enabled:   parseBool(getEnv("ARCHIVE_BEFORE_DELETE", "0")),
		Bucket:    getEnv("ARCHIVE_S3_BUCKET", ""),
		Prefix:    getEnv("ARCHIVE_S3_PREFIX", "archive"),
		Region:    getEnv("ARCHIVE_S3_REGION", ""),
		AccessKey: getEnv("ARCHIVE_S3_ACCESS_KEY", ""),
		SecretKey: getEnv("ARCHIVE_S3_SECRET_KEY", ""),
	}

	cfg.Lock = LockConfig{
		RedisURL: getEnv("CLEANUP_LOCK_REDIS_URL", ""),
		TTL:      parseDuration(getEnv("CLEANUP_LOCK_TTL", "30m"), 30*time.Minute),
	}

	cfg.Schedule = ScheduleConfig{
		Cleanup:   getEnv("CLEANUP_SCHEDULE", "0 3 * * *"),
		DiskCheck: getEnv("DISK_CHECK_SCHEDULE", "*/30 * * * *"),
	}

	cfg.Port = getEnv("PORT", "8080")

	return cfg
}

// Policy builds the retention policy from the env-sourced overrides.
func (c Config) Policy() *retention.Policy {
	ov := retention.Overrides{
		RemoveAfterProcessing: c.Retention.RemoveAfterProcessing,
		ConsiderLastAccess:    c.Retention.ConsiderLastAccess,
		ExemptExtensions:      c.Retention.ExemptExtensions,
		ExemptTags:            c.Retention.ExemptTags,
	}
	if d := c.Retention.UploadMaxAgeDays; d != nil {
		age := time.Duration(*d) * 24 * time.Hour
		ov.UploadMaxAge = &age
	}
	if d := c.Retention.ResultMaxAgeDays; d != nil {
		age := time.Duration(*d) * 24 * time.Hour
		ov.ResultMaxAge = &age
	}
	if h := c.Retention.TempFileMaxAgeHours; h != nil {
		age := time.Duration(*h) * time.Hour
		ov.TempFileMaxAge = &age
	}
	return retention.New(ov)
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// parseOptUint returns nil unless s is a valid non-negative integer, so
// bad overrides keep the policy default.
func parseOptUint(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func parseOptBool(s string) *bool {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	b := parseBool(s)
	return &b
}

func parseList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
