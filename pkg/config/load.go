package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/vantagesec/gatewarden/pkg/secerrors"
)

func configError(reason string) error {
	return &secerrors.ConfigurationError{Reason: reason}
}

// Load reads gatewarden.yaml from the given path (plus ./config and the
// working directory), overlaying environment variables. A missing file is not
// an error; the defaults stand and the environment still applies.
func Load(configPath string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	v := viper.New()
	v.SetConfigName("gatewarden")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("gatewarden")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, configError(fmt.Sprintf("reading config file: %v", err))
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, configError(fmt.Sprintf("unmarshaling config: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromMap decodes a loosely-typed settings map into a Config, starting from
// the defaults. Embedders that carry configuration as generic maps (plugin
// chains, JSON blobs) use this instead of Load.
func FromMap(settings map[string]interface{}) (Config, error) {
	cfg := Default()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &cfg,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return Config{}, configError(fmt.Sprintf("building settings decoder: %v", err))
	}
	if err := decoder.Decode(settings); err != nil {
		return Config{}, configError(fmt.Sprintf("decoding settings: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
