package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	ms "github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wiless/rischarge"
)

const envPrefix = "WPT"

// ReadAppConfig layers the defaults, config.yaml from indir and WPT_*
// environment variables, in that order of precedence (last wins).
func ReadAppConfig(indir string) (rischarge.Config, error) {
	cfg := rischarge.DefaultConfig()
	defaults, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return cfg, fmt.Errorf("read defaults: %w", err)
	}

	v.AddConfigPath(indir)
	v.SetConfigName("config")
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		log.WithField("indir", indir).Info("no config.yaml found, using defaults")
	} else {
		log.WithField("file", v.ConfigFileUsed()).Info("configuration loaded")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	hook := viper.DecodeHook(ms.ComposeDecodeHookFunc(
		ms.TextUnmarshallerHookFunc(),
		ms.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return cfg, fmt.Errorf("%w: %v", rischarge.ErrConfiguration, err)
	}
	log.Debugln("settings", v.AllSettings())
	return cfg, nil
}

// DumpConfig writes cfg as a config.yaml that ReadAppConfig accepts.
func DumpConfig(w io.Writer, cfg rischarge.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
