package conf

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/nullcore1024/RTCPilot/pkg/llm"
	"github.com/nullcore1024/RTCPilot/pkg/signal"
)

type global struct {
	Pprof string `mapstructure:"pprof"`
	Dc    string `mapstructure:"dc"`
}

type logConf struct {
	Level string `mapstructure:"level"`
}

type msuConf struct {
	AliveTTL      int `mapstructure:"alive_ttl"`
	PruneInterval int `mapstructure:"prune_interval"`
}

// Config for the pilot node
type Config struct {
	Global global        `mapstructure:"global"`
	Log    logConf       `mapstructure:"log"`
	Signal signal.Config `mapstructure:"signal"`
	Msu    msuConf       `mapstructure:"msu"`
	LLM    llm.Config    `mapstructure:"llm"`
}

// Load reads a TOML config file into c.
func (c *Config) Load(file string) error {
	if _, err := os.Stat(file); err != nil {
		return fmt.Errorf("config file %s: %w", file, err)
	}

	viper.SetConfigFile(file)
	viper.SetConfigType("toml")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("config file %s read failed: %w", file, err)
	}
	if err := viper.GetViper().Unmarshal(c); err != nil {
		return fmt.Errorf("config file %s loaded failed: %w", file, err)
	}

	if c.Signal.Path == "" {
		c.Signal.Path = "/pilot/center"
	}
	if c.Msu.AliveTTL == 0 {
		c.Msu.AliveTTL = 60
	}
	if c.Msu.PruneInterval == 0 {
		c.Msu.PruneInterval = 10
	}
	return nil
}
