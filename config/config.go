package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tcriess/lightspeed-hubs/globals"
)

const (
	defaultAdminUser       = "admin"
	defaultFallbackPattern = "{display}'s room"
	defaultListenAddr      = "localhost:8100"
)

// Config is the global configuration object which is filled via the configuration file.
type Config struct {
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	GatewayConfig     GatewayConfig     `mapstructure:"gateway"`
	SweepConfig       SweepConfig       `mapstructure:"sweep"`
	NamingConfig      NamingConfig      `mapstructure:"naming"`
	LogLevel          string            `mapstructure:"log_level"`
	AdminUser         string            `mapstructure:"admin_user"`
}

// PersistenceConfig configures the persistence backend. Type is one of
// "postgres", "sqlite" (both via gorm) or "buntdb".
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// GatewayConfig configures the connection to the bot shell which owns the
// platform session. If Url is empty, the daemon runs against the in-memory
// simulator instead.
type GatewayConfig struct {
	Url        string `mapstructure:"url"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// SweepConfig configures the periodic reconciliation pass. CronSpec is a
// standard cron expression, empty disables the periodic sweep (the sweep
// after the ready event always runs).
type SweepConfig struct {
	CronSpec string `mapstructure:"cron_spec"`
}

// NamingConfig holds the fallback room name pattern used whenever a hub has
// no naming pattern of its own or the hub's pattern renders to an empty name.
type NamingConfig struct {
	FallbackPattern string `mapstructure:"fallback_pattern"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.StringP("admin-user", "a", "", "id of the admin user")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	from := "-"
	to := "_"
	name = strings.Replace(name, from, to, -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. It returns a Config
// object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("admin_user", defaultAdminUser)
	viper.SetDefault("naming.fallback_pattern", defaultFallbackPattern)
	viper.SetDefault("gateway.listen_addr", defaultListenAddr)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("LSHUBS")
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

	globals.AppLogger.Info("config", "cfg", cfg, "all", viper.AllSettings())
	return &cfg, nil
}
