package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type AuthConfig struct {
	Secret string `mapstructure:"secret"`
}

type GameConfig struct {
	ChatMaxLength    int `mapstructure:"chat_max_length"`
	ChatRecentLimit  int `mapstructure:"chat_recent_limit"`
	SendQueueSize    int `mapstructure:"send_queue_size"`
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds"`
	IdleTimeoutSecs  int `mapstructure:"idle_timeout_seconds"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("game.chat_max_length", 2000)
	viper.SetDefault("game.chat_recent_limit", 50)
	viper.SetDefault("game.send_queue_size", 64)
	viper.SetDefault("game.heartbeat_seconds", 30)
	viper.SetDefault("game.idle_timeout_seconds", 300)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
