package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	DB            DBConfig
	S3            S3Config
	Storage       StorageConfig
	Log           LogConfig
	Thresholds    ThresholdsConfig
	Preprocessing PreprocessingConfig
	Fingerprint   FingerprintConfig
	Queue         QueueConfig
	Paths         PathsConfig
	Templates     TemplatesConfig
	OCR           OCRConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	Environment   string        `mapstructure:"environment"`
	MaxUploadSize int64         `mapstructure:"max_upload_mb"`
	CORSOrigins   []string      `mapstructure:"cors_origins"`
}

// DBConfig holds database connection settings. Driver is "postgres" or "sqlite".
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the connection string for the configured driver.
func (d *DBConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings for the artifact mirror.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// StorageConfig controls where artifacts end up besides the local disk.
type StorageConfig struct {
	S3Mirror bool `mapstructure:"s3_mirror"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ThresholdsConfig holds routing thresholds.
type ThresholdsConfig struct {
	AutoMatch          float64 `mapstructure:"auto_match"`
	FallbackConfidence float64 `mapstructure:"fallback_confidence"`
	MinMatch           float64 `mapstructure:"min_match"`
}

// PreprocessingConfig controls the image normalization stages.
type PreprocessingConfig struct {
	DeskewEnabled        bool   `mapstructure:"deskew_enabled"`
	DenoiseLevel         string `mapstructure:"denoise_level"`
	BinarizationMethod   string `mapstructure:"binarization_method"`
	TargetDPI            int    `mapstructure:"target_dpi"`
	BorderRemovalEnabled bool   `mapstructure:"border_removal_enabled"`
	MaxDimension         int    `mapstructure:"max_dimension"`
	SaveComparison       bool   `mapstructure:"save_comparison"`
}

// FingerprintConfig holds the zone detection and classification parameters.
type FingerprintConfig struct {
	NoiseFloor       float64 `mapstructure:"noise_floor"`
	HeaderMaxY       float64 `mapstructure:"header_max_y"`
	FooterMinY       float64 `mapstructure:"footer_min_y"`
	BandMinWidth     float64 `mapstructure:"band_min_width"`
	BandMaxHeight    float64 `mapstructure:"band_max_height"`
	TableMinWidth    float64 `mapstructure:"table_min_width"`
	TableMinHeight   float64 `mapstructure:"table_min_height"`
	TableMinArea     float64 `mapstructure:"table_min_area"`
	LogoMaxY         float64 `mapstructure:"logo_max_y"`
	LogoMaxArea      float64 `mapstructure:"logo_max_area"`
	LogoMaxAspectGap float64 `mapstructure:"logo_max_aspect_gap"`
}

// QueueConfig holds task queue settings.
type QueueConfig struct {
	Adapter      string        `mapstructure:"adapter"`
	BackendURL   string        `mapstructure:"backend_url"`
	Name         string        `mapstructure:"name"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Concurrency  int           `mapstructure:"concurrency"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	StorageBase string `mapstructure:"storage_base"`
}

// TemplatesConfig holds template cache and sync settings.
type TemplatesConfig struct {
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	SyncSchedule string        `mapstructure:"sync_schedule"`
	SyncTimeout  time.Duration `mapstructure:"sync_timeout"`
}

// OCRConfig holds settings for the tesseract engine.
type OCRConfig struct {
	TesseractPath string        `mapstructure:"tesseract_path"`
	Language      string        `mapstructure:"language"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from an optional config file (DIGIDOC_CONFIG_FILE)
// and environment variables with the DIGIDOC_ prefix. Environment wins.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DIGIDOC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Bind environment variables explicitly for nested keys
	for _, key := range v.AllKeys() {
		env := "DIGIDOC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, env)
	}

	if path := os.Getenv("DIGIDOC_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}

	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("DIGIDOC_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:          serverPort,
		ReadTimeout:   v.GetDuration("server.read_timeout"),
		WriteTimeout:  v.GetDuration("server.write_timeout"),
		Environment:   v.GetString("server.environment"),
		MaxUploadSize: v.GetInt64("server.max_upload_mb"),
		CORSOrigins:   v.GetStringSlice("server.cors_origins"),
	}
	cfg.DB = DBConfig{
		Driver:   strings.ToLower(v.GetString("db.driver")),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		Path:     v.GetString("db.path"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:    v.GetString("s3.region"),
		Bucket:    v.GetString("s3.bucket"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
	}
	cfg.Storage = StorageConfig{
		S3Mirror: v.GetBool("storage.s3_mirror"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Thresholds = ThresholdsConfig{
		AutoMatch:          v.GetFloat64("thresholds.auto_match"),
		FallbackConfidence: v.GetFloat64("thresholds.fallback_confidence"),
		MinMatch:           v.GetFloat64("thresholds.min_match"),
	}
	cfg.Preprocessing = PreprocessingConfig{
		DeskewEnabled:        v.GetBool("preprocessing.deskew_enabled"),
		DenoiseLevel:         strings.ToLower(v.GetString("preprocessing.denoise_level")),
		BinarizationMethod:   strings.ToLower(v.GetString("preprocessing.binarization_method")),
		TargetDPI:            v.GetInt("preprocessing.target_dpi"),
		BorderRemovalEnabled: v.GetBool("preprocessing.border_removal_enabled"),
		MaxDimension:         v.GetInt("preprocessing.max_dimension"),
		SaveComparison:       v.GetBool("preprocessing.save_comparison"),
	}
	cfg.Fingerprint = FingerprintConfig{
		NoiseFloor:       v.GetFloat64("fingerprint.noise_floor"),
		HeaderMaxY:       v.GetFloat64("fingerprint.header_max_y"),
		FooterMinY:       v.GetFloat64("fingerprint.footer_min_y"),
		BandMinWidth:     v.GetFloat64("fingerprint.band_min_width"),
		BandMaxHeight:    v.GetFloat64("fingerprint.band_max_height"),
		TableMinWidth:    v.GetFloat64("fingerprint.table_min_width"),
		TableMinHeight:   v.GetFloat64("fingerprint.table_min_height"),
		TableMinArea:     v.GetFloat64("fingerprint.table_min_area"),
		LogoMaxY:         v.GetFloat64("fingerprint.logo_max_y"),
		LogoMaxArea:      v.GetFloat64("fingerprint.logo_max_area"),
		LogoMaxAspectGap: v.GetFloat64("fingerprint.logo_max_aspect_gap"),
	}
	cfg.Queue = QueueConfig{
		Adapter:      strings.ToLower(v.GetString("queue.adapter")),
		BackendURL:   v.GetString("queue.backend_url"),
		Name:         v.GetString("queue.name"),
		JobTimeout:   v.GetDuration("queue.job_timeout"),
		PollInterval: v.GetDuration("queue.poll_interval"),
		Concurrency:  v.GetInt("queue.concurrency"),
	}
	cfg.Paths = PathsConfig{
		StorageBase: v.GetString("paths.storage_base"),
	}
	cfg.Templates = TemplatesConfig{
		CacheTTL:     v.GetDuration("templates.cache_ttl"),
		SyncSchedule: v.GetString("templates.sync_schedule"),
		SyncTimeout:  v.GetDuration("templates.sync_timeout"),
	}
	cfg.OCR = OCRConfig{
		TesseractPath: v.GetString("ocr.tesseract_path"),
		Language:      v.GetString("ocr.language"),
		Timeout:       v.GetDuration("ocr.timeout"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_upload_mb", 25)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	// DB defaults
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "digidoc")
	v.SetDefault("db.password", "digidoc_secret")
	v.SetDefault("db.name", "digidoc_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.path", "digidoc.db")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "digidoc-artifacts")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("storage.s3_mirror", false)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Routing thresholds
	v.SetDefault("thresholds.auto_match", 0.85)
	v.SetDefault("thresholds.fallback_confidence", 0.5)
	v.SetDefault("thresholds.min_match", 0.0)

	// Preprocessing defaults
	v.SetDefault("preprocessing.deskew_enabled", true)
	v.SetDefault("preprocessing.denoise_level", "medium")
	v.SetDefault("preprocessing.binarization_method", "otsu")
	v.SetDefault("preprocessing.target_dpi", 300)
	v.SetDefault("preprocessing.border_removal_enabled", true)
	v.SetDefault("preprocessing.max_dimension", 2000)
	v.SetDefault("preprocessing.save_comparison", true)

	// Fingerprint zone rules
	v.SetDefault("fingerprint.noise_floor", 0.001)
	v.SetDefault("fingerprint.header_max_y", 0.2)
	v.SetDefault("fingerprint.footer_min_y", 0.7)
	v.SetDefault("fingerprint.band_min_width", 0.5)
	v.SetDefault("fingerprint.band_max_height", 0.3)
	v.SetDefault("fingerprint.table_min_width", 0.6)
	v.SetDefault("fingerprint.table_min_height", 0.3)
	v.SetDefault("fingerprint.table_min_area", 0.1)
	v.SetDefault("fingerprint.logo_max_y", 0.3)
	v.SetDefault("fingerprint.logo_max_area", 0.05)
	v.SetDefault("fingerprint.logo_max_aspect_gap", 0.1)

	// Queue defaults
	v.SetDefault("queue.adapter", "redis")
	v.SetDefault("queue.backend_url", "redis://localhost:6379/0")
	v.SetDefault("queue.name", "documents")
	v.SetDefault("queue.job_timeout", "10m")
	v.SetDefault("queue.poll_interval", "1s")
	v.SetDefault("queue.concurrency", 2)

	v.SetDefault("paths.storage_base", "./data/storage")

	// Template cache/sync defaults
	v.SetDefault("templates.cache_ttl", "24h")
	v.SetDefault("templates.sync_schedule", "@every 1h")
	v.SetDefault("templates.sync_timeout", "30s")

	// OCR defaults
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.timeout", "2m")
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	for name, val := range map[string]float64{
		"thresholds.auto_match":          c.Thresholds.AutoMatch,
		"thresholds.fallback_confidence": c.Thresholds.FallbackConfidence,
		"thresholds.min_match":           c.Thresholds.MinMatch,
		"fingerprint.noise_floor":        c.Fingerprint.NoiseFloor,
	} {
		if val < 0 || val > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, val))
		}
	}
	if c.Queue.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("queue.concurrency must be positive, got %d", c.Queue.Concurrency))
	}
	if c.Queue.JobTimeout <= 0 {
		errs = append(errs, fmt.Errorf("queue.job_timeout must be positive, got %s", c.Queue.JobTimeout))
	}
	if c.Queue.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("queue.poll_interval must be positive, got %s", c.Queue.PollInterval))
	}
	if c.DB.Driver != "postgres" && c.DB.Driver != "sqlite" {
		errs = append(errs, fmt.Errorf("db.driver must be postgres or sqlite, got %q", c.DB.Driver))
	}
	if c.Paths.StorageBase == "" {
		errs = append(errs, errors.New("paths.storage_base is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
