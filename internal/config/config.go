package config

import (
	"fmt"
	"net"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel      string `yaml:"log-level" env-default:"info"`
	BindAddr      string `yaml:"bind-addr" env-default:""`
	HTTPPort      string `yaml:"http-port" env-default:"9090"`
	SocketPort    string `yaml:"socket-port" env-default:"8080"`
	AllowedOrigin string `yaml:"allowed-origin" env-default:"*"`
	StaticDir     string `yaml:"static-dir" env-default:"./public"`
	Redis         Redis  `yaml:"redis"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Config) GetHTTPAddr() string {
	return net.JoinHostPort(that.BindAddr, that.HTTPPort)
}

func (that *Config) GetSocketAddr() string {
	return net.JoinHostPort(that.BindAddr, that.SocketPort)
}

func (that *Redis) GetRedisAddr() string {
	return net.JoinHostPort(that.Host, that.Port)
}
