package cmd

import (
	"errors"
	"log"

	"github.com/spigell/scratchfs/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "scratchfs"
)

type Config struct {
	Server  *server.Config `mapstructure:"server"`
	Offload *OffloadConfig `mapstructure:"offload"`
}

type OffloadConfig struct {
	TokenLimit    int `mapstructure:"token-limit"`
	CharsPerToken int `mapstructure:"chars-per-token"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "scratchfs is an in-memory scratch filesystem for LLM agents with large tool result offloading",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is scratchfs.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// A missing default config file is fine since every setting has a
	// default. A config file that exists but does not parse is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Server == nil {
		config.Server = &server.Config{}
	}
	if config.Offload == nil {
		config.Offload = &OffloadConfig{}
	}

	return config, nil
}
