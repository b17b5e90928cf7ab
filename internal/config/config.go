// Package config loads tool settings from a .env file, an optional
// wetwire.yaml and WETWIRE_* environment variables, and provides the
// injected environment lookup used to resolve stack secrets.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables that override settings,
// e.g. WETWIRE_BUILD_TIMEOUT or WETWIRE_S3_ENDPOINT.
const EnvPrefix = "WETWIRE"

// DefaultConfigName is the settings file searched in the working directory.
const DefaultConfigName = "wetwire"

// Config holds the tool settings.
type Config struct {
	// Arch is the default function architecture.
	Arch string
	// BuildTimeout bounds one bundling run.
	BuildTimeout time.Duration
	// AssetBucket is the default value of the template's asset bucket parameter.
	AssetBucket string
	// SkipPull uses locally cached build images only.
	SkipPull bool
	Verbose  bool
	S3       S3Config
	// File is the settings file that was read, empty if none.
	File string
}

// S3Config locates the S3-compatible store artifacts are published to.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Options control where settings are read from.
type Options struct {
	// ConfigFile is an explicit settings file. Empty searches for
	// wetwire.yaml in the working directory.
	ConfigFile string
	// EnvFiles are dotenv files loaded into the process environment before
	// reading settings. Missing files are ignored. Empty means ".env".
	EnvFiles []string
}

// Load reads settings. A missing default settings file is not an error; a
// missing explicit one is.
func Load(opts Options) (*Config, error) {
	envFiles := opts.EnvFiles
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	v := viper.New()
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(DefaultConfigName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		cfg.File = v.ConfigFileUsed()
	}

	cfg.Arch = v.GetString("arch")
	cfg.BuildTimeout = v.GetDuration("build_timeout")
	cfg.AssetBucket = v.GetString("asset_bucket")
	cfg.SkipPull = v.GetBool("skip_pull")
	cfg.Verbose = v.GetBool("verbose")
	cfg.S3 = S3Config{
		Endpoint:  v.GetString("s3.endpoint"),
		Region:    v.GetString("s3.region"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
		UseSSL:    v.GetBool("s3.use_ssl"),
	}

	if cfg.BuildTimeout <= 0 {
		return nil, fmt.Errorf("build_timeout must be positive, got %s", cfg.BuildTimeout)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("arch", "x86_64")
	v.SetDefault("build_timeout", 5*time.Minute)
	v.SetDefault("asset_bucket", "")
	v.SetDefault("skip_pull", false)
	v.SetDefault("verbose", false)
	v.SetDefault("s3.endpoint", "s3.amazonaws.com")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.use_ssl", true)
}

// Lookup reads an externally supplied value by name.
type Lookup func(name string) (string, bool)

// EnvLookup reads from the process environment.
func EnvLookup() Lookup {
	return os.LookupEnv
}

// MapLookup reads from a fixed map.
func MapLookup(values map[string]string) Lookup {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

// Value returns the named value, or "" when it is absent. Absence is not an
// error: the value may be supplied later at the platform level.
func (l Lookup) Value(name string) string {
	if l == nil {
		return ""
	}
	v, _ := l(name)
	return v
}

// Missing returns the names with no value, in the order given.
func (l Lookup) Missing(names ...string) []string {
	var missing []string
	for _, name := range names {
		if l == nil {
			missing = append(missing, name)
			continue
		}
		if _, ok := l(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
