package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DebugEnv enables diagnostic mode when set, whatever its value.
const DebugEnv = "DEBUG"

// Options selects the sources Load reads.
type Options struct {
	// ConfigFile is read when set. .yaml, .yml, .json and .toml files are
	// decoded by format; any other file uses the keyword format.
	ConfigFile string

	// EnvFile is a .env file of PIPESIM_* variables, below the real environment.
	EnvFile string

	// Flags are the parsed command-line flags from NewFlagSet.
	Flags *pflag.FlagSet

	// LookupEnv reads DEBUG. It defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load resolves the configuration from every source in opts.
func Load(opts Options) (*Config, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if opts.ConfigFile != "" {
		if err := readConfigFile(v, opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	debug := false
	if _, ok := lookup(DebugEnv); ok {
		debug = true
	}

	if opts.EnvFile != "" {
		envDebug, err := mergeEnvFile(v, opts.EnvFile)
		if err != nil {
			return nil, err
		}
		debug = debug || envDebug
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	cfg.ConfigFile = opts.ConfigFile
	cfg.Debug = cfg.Debug || debug
	cfg.Log.Timestamp = true
	cfg.Log.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s could not be opened: %w", path, err)
	}
	defer f.Close()

	settings, err := parseLegacy(path, f)
	if err != nil {
		return err
	}
	return v.MergeConfigMap(nest(settings))
}

// mergeEnvFile layers the PIPESIM_* entries of a .env file above the config
// file. It reports whether the file sets DEBUG.
func mergeEnvFile(v *viper.Viper, path string) (bool, error) {
	entries, err := godotenv.Read(path)
	if err != nil {
		return false, fmt.Errorf("read env file %s: %w", path, err)
	}

	settings := make(map[string]interface{})
	for key := range defaults() {
		if value, ok := entries[envName(key)]; ok {
			settings[key] = value
		}
	}
	if err := v.MergeConfigMap(nest(settings)); err != nil {
		return false, fmt.Errorf("merge env file %s: %w", path, err)
	}

	_, debug := entries[DebugEnv]
	return debug, nil
}

// envName returns the environment variable of a key, e.g. PIPESIM_LOG_LEVEL.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// nest turns dotted keys into nested maps as viper expects them from a file.
func nest(flat map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for key, value := range flat {
		parts := strings.Split(key, ".")
		m := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := m[part].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				m[part] = child
			}
			m = child
		}
		m[parts[len(parts)-1]] = value
	}
	return out
}
