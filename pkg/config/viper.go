package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads client configuration from file and environment variables.
// configName is the name of the config file (without extension); the file is
// searched in configPath, the working directory and ~/.unistream. A missing
// file is not an error: environment variables alone are enough to run.
func Load(configPath, configName string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.unistream")

	v.SetEnvPrefix("UNISTREAM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return v, nil
}
