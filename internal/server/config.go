package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config represents the complete server configuration
type Config struct {
	Server   ServerSettings  `hcl:"server,block"`
	BotRooms BotRoomSettings `hcl:"bot_rooms,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Addr     string `hcl:"addr,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// BotRoomSettings controls the bot-room supervisor
type BotRoomSettings struct {
	Min             int `hcl:"min,optional"`
	Max             int `hcl:"max,optional"`
	IntervalSeconds int `hcl:"interval_seconds,optional"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Addr:     "localhost:8080",
			LogLevel: "info",
		},
		BotRooms: BotRoomSettings{
			Min:             defaultBotRoomsMin,
			Max:             defaultBotRoomsMax,
			IntervalSeconds: int(defaultSupervisorInterval / time.Second),
		},
	}
}

// LoadConfig loads server configuration from an HCL file, falling back to
// defaults when the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	if config.Server.Addr == "" {
		config.Server.Addr = "localhost:8080"
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.BotRooms.Min == 0 {
		config.BotRooms.Min = defaultBotRoomsMin
	}
	if config.BotRooms.Max == 0 {
		config.BotRooms.Max = defaultBotRoomsMax
	}
	if config.BotRooms.IntervalSeconds == 0 {
		config.BotRooms.IntervalSeconds = int(defaultSupervisorInterval / time.Second)
	}

	return &config, nil
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}
	if c.BotRooms.Min < 0 {
		return fmt.Errorf("bot_rooms min must not be negative")
	}
	if c.BotRooms.Max < c.BotRooms.Min {
		return fmt.Errorf("bot_rooms max (%d) must be at least min (%d)", c.BotRooms.Max, c.BotRooms.Min)
	}
	if c.BotRooms.IntervalSeconds <= 0 {
		return fmt.Errorf("bot_rooms interval_seconds must be positive")
	}
	return nil
}

// SupervisorInterval returns the supervisor cycle as a duration.
func (c *Config) SupervisorInterval() time.Duration {
	return time.Duration(c.BotRooms.IntervalSeconds) * time.Second
}
