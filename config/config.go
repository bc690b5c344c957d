package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarineRcher/notAlone-sub002/globals"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// DefaultMinMembers is the waitroom quorum used when none is configured.
	DefaultMinMembers = 3

	defaultMessageLimit = 50
	defaultStatsCron    = "@every 1m"
)

// Config is the global configuration object which is filled via the configuration file
// and/or command-line flags and environment variables.
type Config struct {
	MinMembers        int               `mapstructure:"min_members"`
	LogLevel          string            `mapstructure:"log_level"`
	AuthConfig        AuthConfig        `mapstructure:"auth"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	HistoryConfig     HistoryConfig     `mapstructure:"history"`
	StatsConfig       StatsConfig       `mapstructure:"stats"`
}

// AuthConfig holds the shared secret used to verify signed tokens. The mock
// token scheme needs no configuration.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// PersistenceConfig configures the persistence backend. Type is one of
// "buntdb", "sqlite" or "postgres"; an empty type disables persistence.
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// HistoryConfig limits how many stored messages are replayed to a client
// joining a group.
type HistoryConfig struct {
	MessageLimit int `mapstructure:"message_limit"`
}

// StatsConfig configures the periodic group-stats snapshot.
type StatsConfig struct {
	CronSpec string `mapstructure:"cron_spec"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.IntP("min-members", "m", DefaultMinMembers, "minimum number of waiting users required to form a group")
	flagSet.String("jwt-secret", "", "shared secret for signed-token authentication")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	name = strings.Replace(name, "-", "_", -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. It returns a Config
// object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("min_members", DefaultMinMembers)
	viper.SetDefault("history.message_limit", defaultMessageLimit)
	viper.SetDefault("stats.cron_spec", defaultStatsCron)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("NOTALONE")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}
	if cfg.MinMembers <= 1 {
		cfg.MinMembers = DefaultMinMembers
	}
	if cfg.HistoryConfig.MessageLimit <= 0 {
		cfg.HistoryConfig.MessageLimit = defaultMessageLimit
	}
	if cfg.StatsConfig.CronSpec == "" {
		cfg.StatsConfig.CronSpec = defaultStatsCron
	}

	globals.AppLogger.Debug("config", "cfg", cfg, "all", viper.AllSettings())
	return &cfg, nil
}
