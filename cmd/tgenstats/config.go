package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/tgenstats/internal/discover"
	"github.com/tinytelemetry/tgenstats/internal/export"
	"github.com/tinytelemetry/tgenstats/internal/model"
)

const (
	envPrefix           = "TGENSTATS"
	defaultMultiproc    = 1
	defaultCompression  = string(export.CompressionXZ)
	defaultArchiveKeep  = 24
	defaultS3Region     = "us-east-1"
	defaultMaxLineBytes = 1024 * 1024
)

// appConfig is the resolved runtime configuration of one run.
type appConfig struct {
	Expressions    []string `mapstructure:"expression"`
	Multiproc      int      `mapstructure:"multiproc"`
	Prefix         string   `mapstructure:"prefix"`
	Compression    string   `mapstructure:"compression"`
	MaxLineSize    int      `mapstructure:"max-line-size"`
	Progress       bool     `mapstructure:"progress"`
	Verbose        bool     `mapstructure:"verbose"`
	DBPath         string   `mapstructure:"db-path"`
	ArchiveDir     string   `mapstructure:"archive-dir"`
	ArchiveKeep    int      `mapstructure:"archive-keep"`
	UploadURL      string   `mapstructure:"upload-url"`
	S3Endpoint     string   `mapstructure:"s3-endpoint"`
	S3Region       string   `mapstructure:"s3-region"`
	S3AccessKey    string   `mapstructure:"s3-access-key"`
	S3SecretKey    string   `mapstructure:"s3-secret-key"`
	S3SessionToken string   `mapstructure:"s3-session-token"`
	S3UseSSL       bool     `mapstructure:"s3-use-ssl"`

	SearchPath string `mapstructure:"-"` // positional argument
	ConfigPath string `mapstructure:"-"` // not from config file
}

// patterns is the default file pattern followed by every extra expression.
func (c appConfig) patterns() []string {
	return append([]string{model.DefaultPattern}, c.Expressions...)
}

// workers resolves the multiproc setting to a worker count.
func (c appConfig) workers() int {
	if c.Multiproc == 0 {
		return runtime.NumCPU()
	}
	return c.Multiproc
}

// registerFlags declares every configurable key on fs.
func registerFlags(fs *pflag.FlagSet) {
	fs.StringArrayP("expression", "e", nil, "extra regular expression selecting log file names (repeatable)")
	fs.IntP("multiproc", "m", defaultMultiproc, "number of files processed in parallel, 0 for one per CPU")
	fs.StringP("prefix", "p", "", "directory for the result document (default is the working directory)")
	fs.String("compression", defaultCompression, "result compression: xz, zstd, gzip or none")
	fs.Int("max-line-size", defaultMaxLineBytes, "longest log line in bytes; longer lines are skipped")
	fs.Bool("progress", false, "show a progress bar on stderr")
	fs.BoolP("verbose", "v", false, "log one line per processed file")
	fs.String("db-path", "", "also record the series in this DuckDB database")
	fs.String("archive-dir", "", "keep a timestamped copy of every result document here")
	fs.Int("archive-keep", defaultArchiveKeep, "number of archived documents to keep")
	fs.String("upload-url", "", "upload the result document to this s3://bucket/prefix")
	fs.String("s3-endpoint", "", "custom S3 endpoint")
	fs.String("s3-region", defaultS3Region, "S3 region")
	fs.String("s3-access-key", "", "S3 access key")
	fs.String("s3-secret-key", "", "S3 secret key")
	fs.String("s3-session-token", "", "S3 session token")
	fs.Bool("s3-use-ssl", true, "use https for a custom S3 endpoint without scheme")
}

// loadConfig merges defaults, the optional config file, TGENSTATS_*
// environment variables and flags (highest precedence) and validates the
// result.
func loadConfig(fs *pflag.FlagSet, configPath, searchPath string) (appConfig, error) {
	var cfg appConfig

	home, homeErr := os.UserHomeDir()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("expression", []string{})
	v.SetDefault("multiproc", defaultMultiproc)
	v.SetDefault("prefix", "")
	v.SetDefault("compression", defaultCompression)
	v.SetDefault("max-line-size", defaultMaxLineBytes)
	v.SetDefault("progress", false)
	v.SetDefault("verbose", false)
	v.SetDefault("db-path", "")
	v.SetDefault("archive-dir", "")
	v.SetDefault("archive-keep", defaultArchiveKeep)
	v.SetDefault("upload-url", "")
	v.SetDefault("s3-endpoint", "")
	v.SetDefault("s3-region", defaultS3Region)
	v.SetDefault("s3-access-key", "")
	v.SetDefault("s3-secret-key", "")
	v.SetDefault("s3-session-token", "")
	v.SetDefault("s3-use-ssl", true)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return cfg, fmt.Errorf("binding flags: %w", err)
		}
	}

	switch {
	case configPath != "":
		v.SetConfigFile(expandHome(configPath, home))
	case homeErr == nil:
		v.SetConfigFile(filepath.Join(home, ".config", "tgenstats", "config.yml"))
	}
	if configPath != "" || homeErr == nil {
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if cfg.Multiproc < 0 {
		return cfg, fmt.Errorf("invalid multiproc: %d", cfg.Multiproc)
	}
	if cfg.MaxLineSize <= 0 {
		return cfg, fmt.Errorf("invalid max-line-size: %d", cfg.MaxLineSize)
	}
	c, err := export.ParseCompression(cfg.Compression)
	if err != nil {
		return cfg, err
	}
	cfg.Compression = string(c)
	if _, err := discover.CompilePatterns(cfg.patterns()); err != nil {
		return cfg, err
	}

	if cfg.Prefix == "" {
		cfg.Prefix = "."
	}
	for _, p := range []*string{&cfg.Prefix, &cfg.DBPath, &cfg.ArchiveDir} {
		if *p == "" {
			continue
		}
		if *p, err = absPath(expandHome(*p, home)); err != nil {
			return cfg, err
		}
	}

	if searchPath == "" {
		return cfg, fmt.Errorf("missing search path")
	}
	if discover.IsStdin(searchPath) {
		cfg.SearchPath = model.StdinPath
	} else if cfg.SearchPath, err = absPath(expandHome(searchPath, home)); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// expandHome replaces a leading "~/" with home.
func expandHome(p, home string) string {
	if home != "" && (p == "~" || strings.HasPrefix(p, "~/")) {
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	return abs, nil
}
