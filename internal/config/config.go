package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

const CurrentVersion = "1"

// Config represents the complete configuration structure
type Config struct {
	Version  string         `yaml:"version" default:"1"`
	Site     SiteConfig     `yaml:"site"`
	Server   ServerConfig   `yaml:"server"`
	Theme    ThemeConfig    `yaml:"theme"`
	Editor   EditorConfig   `yaml:"editor"`
	Storage  StorageConfig  `yaml:"storage"`
	Previews PreviewsConfig `yaml:"previews"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
	// "console" or "json"
	Format string `yaml:"format" default:"console"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Site Builder"`
	Description string `yaml:"description" default:"Visual editor for business websites"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12600"`

	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds" default:"10"`

	// Origins allowed to call the API from a browser.
	AllowedOrigins []string `yaml:"allowed_origins" default:"*"`
}

type ThemeConfig struct {
	// Chroma style used when a theme record names no palette.
	DefaultPalette string `yaml:"default_palette" default:"gruvbox"`
	FontFamily     string `yaml:"font_family" default:"Inter, sans-serif"`
}

type EditorConfig struct {
	Enabled        bool  `yaml:"enabled" default:"true"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes" default:"10485760"`
}

type StorageConfig struct {
	// "sqlite" or "memory"
	Backend      string `yaml:"backend" default:"sqlite"`
	DatabasePath string `yaml:"database_path" default:"./database.db"`
	// "zstd" or "gzip", applied to stored records
	Compression  string `yaml:"compression" default:"zstd"`
}

type PreviewsConfig struct {
	// "memory" or "s3"
	Backend     string `yaml:"backend" default:"memory"`
	URLPrefix   string `yaml:"url_prefix" default:"/previews/"`
	S3Bucket    string `yaml:"s3_bucket" default:""`
	S3Endpoint  string `yaml:"s3_endpoint" default:""`
	S3PublicURL string `yaml:"s3_public_url" default:""`
	TempPrefix  string `yaml:"temp_prefix" default:"tmp/"`
	AssetPrefix string `yaml:"asset_prefix" default:"assets/"`
}

var AppConfig *Config

func LoadConfig(path string) error {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	// Try to read and parse the config file
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		AppConfig = config
		return nil
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validate(config); err != nil {
		return err
	}

	AppConfig = config
	return nil
}

func validate(config *Config) error {
	if config.Version != CurrentVersion {
		return fmt.Errorf("unsupported configuration version %q (expected %q)", config.Version, CurrentVersion)
	}

	switch config.Storage.Backend {
	case StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}

	switch config.Storage.Compression {
	case "zstd", "gzip":
	default:
		return fmt.Errorf("unknown storage compression %q", config.Storage.Compression)
	}

	switch config.Previews.Backend {
	case PreviewsMemory:
	case PreviewsS3:
		if config.Previews.S3Bucket == "" {
			return fmt.Errorf("previews.s3_bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown previews backend %q", config.Previews.Backend)
	}

	switch config.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown logging format %q", config.Logging.Format)
	}

	if config.Editor.MaxUploadBytes <= 0 {
		return fmt.Errorf("editor.max_upload_bytes must be positive")
	}

	// The prefix is both a URL path and a ServeMux subtree pattern.
	prefix := strings.Trim(config.Previews.URLPrefix, "/")
	if prefix == "" {
		return fmt.Errorf("previews.url_prefix must be a path below /")
	}
	config.Previews.URLPrefix = "/" + prefix + "/"

	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int, reflect.Int64:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
