package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	zoomestimator "github.com/menta2k/zoom-estimator"
	"github.com/menta2k/zoom-estimator/internal/logger"
	"github.com/menta2k/zoom-estimator/pkg/analyzer"
	"github.com/menta2k/zoom-estimator/pkg/geometry"
	"github.com/menta2k/zoom-estimator/pkg/mask"
	"github.com/menta2k/zoom-estimator/pkg/processing"
	"github.com/menta2k/zoom-estimator/pkg/types"
)

// EnvPrefix prefixes environment overrides, ZOOMCALC_RIG_DISC_DIAMETER_M
// overrides rig.disc_diameter_m
const EnvPrefix = "ZOOMCALC"

// Config holds the application configuration
type Config struct {
	Rig      RigConfig       `json:"rig" mapstructure:"rig"`
	Mask     mask.Params     `json:"mask" mapstructure:"mask"`
	Disc     mask.DiscConfig `json:"disc" mapstructure:"disc"`
	Analyzer AnalyzerConfig  `json:"analyzer" mapstructure:"analyzer"`
	Output   OutputConfig    `json:"output" mapstructure:"output"`
	Logging  logger.Config   `json:"logging" mapstructure:"logging"`
	Redis    RedisConfig     `json:"redis" mapstructure:"redis"`
	History  HistoryConfig   `json:"history" mapstructure:"history"`
	Server   ServerConfig    `json:"server" mapstructure:"server"`
}

// RigConfig holds the camera and calibration disc settings
type RigConfig struct {
	SensorWidthMM  float64   `json:"sensor_width_mm" mapstructure:"sensor_width_mm"`
	SensorHeightMM float64   `json:"sensor_height_mm" mapstructure:"sensor_height_mm"`
	SensorWidthPx  int       `json:"sensor_width_px" mapstructure:"sensor_width_px"`
	SensorHeightPx int       `json:"sensor_height_px" mapstructure:"sensor_height_px"`
	DiscDiameterM  float64   `json:"disc_diameter_m" mapstructure:"disc_diameter_m"`
	FocalLengths   []float64 `json:"focal_lengths" mapstructure:"focal_lengths"`
}

// AnalyzerConfig holds configuration for photo loading
type AnalyzerConfig struct {
	SupportedFormats []string `json:"supported_formats" mapstructure:"supported_formats"`
	MinImageSize     int      `json:"min_image_size" mapstructure:"min_image_size"`
}

// OutputConfig holds configuration for produced artifacts
type OutputConfig struct {
	Dir         string `json:"dir" mapstructure:"dir"`
	ZoomFile    string `json:"zoom_file" mapstructure:"zoom_file"`
	SaveOverlay bool   `json:"save_overlay" mapstructure:"save_overlay"`
	ImageFormat string `json:"image_format" mapstructure:"image_format"`
	Quality     int    `json:"quality" mapstructure:"quality"`
	Lossless    bool   `json:"lossless" mapstructure:"lossless"`
}

// RedisConfig holds the optional zoom record store settings
type RedisConfig struct {
	Enabled   bool          `json:"enabled" mapstructure:"enabled"`
	Addr      string        `json:"addr" mapstructure:"addr"`
	Password  string        `json:"password" mapstructure:"password"`
	DB        int           `json:"db" mapstructure:"db"`
	TTL       time.Duration `json:"ttl" mapstructure:"ttl"`
	KeyPrefix string        `json:"key_prefix" mapstructure:"key_prefix"`
}

// HistoryConfig holds the measurement history settings
type HistoryConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Addr          string        `json:"addr" mapstructure:"addr"`
	Mode          string        `json:"mode" mapstructure:"mode"`
	MaxConcurrent int           `json:"max_concurrent" mapstructure:"max_concurrent"`
	UploadLimit   int64         `json:"upload_limit" mapstructure:"upload_limit"`
	QueueTimeout  time.Duration `json:"queue_timeout" mapstructure:"queue_timeout"`
}

// legacyKeys maps the flat keys of old settings files onto rig settings
var legacyKeys = map[string]string{
	"disc_diameter_m":   "rig.disc_diameter_m",
	"sensor_wight_mm":   "rig.sensor_width_mm",
	"sensor_height_mm":  "rig.sensor_height_mm",
	"sensor_wight_px":   "rig.sensor_width_px",
	"sensor_height_px":  "rig.sensor_height_px",
	"possible_focal_g9": "rig.focal_lengths",
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Rig: RigConfig{
			SensorWidthMM:  17.3,
			SensorHeightMM: 13.0,
			SensorWidthPx:  5184,
			SensorHeightPx: 3888,
			DiscDiameterM:  0.3,
			FocalLengths:   []float64{12, 14, 17, 20, 25, 30, 35, 42, 50, 60},
		},
		Mask: mask.DefaultParams(),
		Disc: mask.DefaultDiscConfig(),
		Analyzer: AnalyzerConfig{
			SupportedFormats: []string{"jpg", "jpeg", "png", "webp", "bmp", "tif", "tiff"},
			MinImageSize:     100,
		},
		Output: OutputConfig{
			Dir:         ".",
			ZoomFile:    "zoom.conf",
			SaveOverlay: true,
			ImageFormat: "jpg",
			Quality:     90,
		},
		Logging: logger.Config{
			Mode: "development",
			File: "app_loggin.log",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "zoomcalc:",
		},
		History: HistoryConfig{
			Path: "zoom_history.db",
		},
		Server: ServerConfig{
			Addr:          ":8080",
			Mode:          "release",
			MaxConcurrent: 2,
			UploadLimit:   64 << 20,
			QueueTimeout:  30 * time.Second,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("rig.sensor_width_mm", d.Rig.SensorWidthMM)
	v.SetDefault("rig.sensor_height_mm", d.Rig.SensorHeightMM)
	v.SetDefault("rig.sensor_width_px", d.Rig.SensorWidthPx)
	v.SetDefault("rig.sensor_height_px", d.Rig.SensorHeightPx)
	v.SetDefault("rig.disc_diameter_m", d.Rig.DiscDiameterM)
	v.SetDefault("rig.focal_lengths", d.Rig.FocalLengths)

	v.SetDefault("mask.open_kernel", d.Mask.OpenKernel)
	v.SetDefault("mask.bilateral_diameter", d.Mask.BilateralDiameter)
	v.SetDefault("mask.bilateral_sigma", d.Mask.BilateralSigma)
	v.SetDefault("mask.blur_kernel", d.Mask.BlurKernel)
	v.SetDefault("mask.diff_threshold", d.Mask.DiffThreshold)
	v.SetDefault("mask.otsu_hint", d.Mask.OtsuHint)
	v.SetDefault("mask.hue_low", d.Mask.HueLow)
	v.SetDefault("mask.hue_high", d.Mask.HueHigh)
	v.SetDefault("mask.min_saturation", d.Mask.MinSaturation)
	v.SetDefault("mask.min_value", d.Mask.MinValue)
	v.SetDefault("mask.color_bilateral_sigma", d.Mask.ColorBilateralSigma)
	v.SetDefault("mask.color_kernel", d.Mask.ColorKernel)

	v.SetDefault("disc.steep_angle", d.Disc.SteepAngle)
	v.SetDefault("disc.scale", d.Disc.Scale)
	v.SetDefault("disc.dp", d.Disc.DP)
	v.SetDefault("disc.min_dist", d.Disc.MinDist)
	v.SetDefault("disc.min_radius", d.Disc.MinRadius)
	v.SetDefault("disc.margin", d.Disc.Margin)

	v.SetDefault("analyzer.supported_formats", d.Analyzer.SupportedFormats)
	v.SetDefault("analyzer.min_image_size", d.Analyzer.MinImageSize)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.zoom_file", d.Output.ZoomFile)
	v.SetDefault("output.save_overlay", d.Output.SaveOverlay)
	v.SetDefault("output.image_format", d.Output.ImageFormat)
	v.SetDefault("output.quality", d.Output.Quality)
	v.SetDefault("output.lossless", d.Output.Lossless)

	v.SetDefault("logging.mode", d.Logging.Mode)
	v.SetDefault("logging.file", d.Logging.File)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)
	v.SetDefault("redis.key_prefix", d.Redis.KeyPrefix)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.max_concurrent", d.Server.MaxConcurrent)
	v.SetDefault("server.upload_limit", d.Server.UploadLimit)
	v.SetDefault("server.queue_timeout", d.Server.QueueTimeout)
}

// LoadFromFile loads configuration from a JSON or YAML file. Values from a
// .env file in the working directory and ZOOMCALC_ environment variables
// override the file.
func LoadFromFile(filename string) (*Config, error) {
	if _, err := os.Stat(filename); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: settings file is not found: %s", types.ErrMissingInput, filename)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(filename)
	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".yaml" && ext != ".yml" {
		v.SetConfigType("json")
	}
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file: %v", types.ErrInvalidInput, err)
	}

	// legacy values rank below the structured keys
	for legacy, key := range legacyKeys {
		if v.InConfig(legacy) {
			v.SetDefault(key, v.Get(legacy))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", types.ErrInvalidInput, err)
	}

	return &cfg, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Rig returns the rig settings the geometry calculator works with
func (c *Config) Rig() geometry.Rig {
	return geometry.Rig{
		Sensor: geometry.CameraGeometry{
			SensorWidthMM:  c.Rig.SensorWidthMM,
			SensorHeightMM: c.Rig.SensorHeightMM,
			SensorWidthPx:  c.Rig.SensorWidthPx,
			SensorHeightPx: c.Rig.SensorHeightPx,
		},
		DiscDiameterM: c.Rig.DiscDiameterM,
		FocalLengths:  append([]float64(nil), c.Rig.FocalLengths...),
	}
}

// EstimatorOptions builds the estimator options for this configuration
func (c *Config) EstimatorOptions(log *zap.Logger) zoomestimator.Options {
	return zoomestimator.Options{
		Rig:  c.Rig(),
		Mask: c.Mask,
		Disc: c.Disc,
		Analyzer: analyzer.Config{
			SupportedFormats: append([]string(nil), c.Analyzer.SupportedFormats...),
			MinImageSize:     c.Analyzer.MinImageSize,
		},
		Output: processing.OutputOptions{
			Format:   c.Output.ImageFormat,
			Quality:  c.Output.Quality,
			Lossless: c.Output.Lossless,
		},
		OutputDir:   c.Output.Dir,
		SaveOverlay: c.Output.SaveOverlay,
		Logger:      log,
	}
}

// ZoomFilePath returns the zoom file location, relative names resolve
// against the output directory
func (c *Config) ZoomFilePath() string {
	if filepath.IsAbs(c.Output.ZoomFile) || c.Output.Dir == "" {
		return c.Output.ZoomFile
	}
	return filepath.Join(c.Output.Dir, c.Output.ZoomFile)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Rig().Validate(); err != nil {
		return fmt.Errorf("rig: %w", err)
	}

	if c.Mask.OpenKernel < 1 || c.Mask.BlurKernel < 1 || c.Mask.ColorKernel < 1 {
		return fmt.Errorf("%w: mask kernel sizes must be positive", types.ErrInvalidInput)
	}
	if c.Mask.BlurKernel%2 == 0 {
		return fmt.Errorf("%w: mask.blur_kernel must be odd", types.ErrInvalidInput)
	}
	if c.Mask.HueLow > c.Mask.HueHigh {
		return fmt.Errorf("%w: mask.hue_low must not exceed mask.hue_high", types.ErrInvalidInput)
	}

	if c.Disc.Scale <= 0 || c.Disc.Scale > 1 {
		return fmt.Errorf("%w: disc.scale must be in (0, 1]", types.ErrInvalidInput)
	}

	if c.Analyzer.MinImageSize < 1 {
		return fmt.Errorf("%w: analyzer.min_image_size must be positive", types.ErrInvalidInput)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("%w: output.quality must be between 1 and 100", types.ErrInvalidInput)
	}
	switch strings.ToLower(c.Output.ImageFormat) {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("%w: output.image_format %q is not jpg, png or webp", types.ErrInvalidInput, c.Output.ImageFormat)
	}
	if c.Output.ZoomFile == "" {
		return fmt.Errorf("%w: output.zoom_file cannot be empty", types.ErrInvalidInput)
	}

	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("%w: server.max_concurrent must be positive", types.ErrInvalidInput)
	}

	return nil
}

// GetConfigPath returns the default settings file path
func GetConfigPath() string {
	if workdir := os.Getenv("SCANBOT_WORKDIR"); workdir != "" {
		return filepath.Join(workdir, "bin", "settings.json")
	}
	return "settings.json"
}
