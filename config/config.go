package config

import (
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/bookfriends/lending-service/pkg/database"
	"github.com/bookfriends/lending-service/pkg/logger"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"HTTP_PORT" default:"5000"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration
}

type Auth struct {
	Realm string `yaml:"realm" envconfig:"AUTH_REALM" default:"Przyjacielskie wypozyczenia ksiazek"`
	// Bcrypt switches stored credentials from plaintext exact match to
	// bcrypt hashes.
	Bcrypt bool `yaml:"bcrypt" envconfig:"AUTH_BCRYPT" default:"false"`
}

type Mirror struct {
	Dir string `yaml:"dir" envconfig:"MIRROR_DIR" default:"."`
}

type Config struct {
	Server   HTTPServer      `yaml:"server"`
	Database database.Config `yaml:"db"`
	Auth     Auth            `yaml:"auth"`
	Mirror   Mirror          `yaml:"mirror"`
	Log      logger.Log      `yaml:"log"`
	// LegacyReturn reproduces the historical return behavior that left
	// the loan row in the store and only rewrote the mirror.
	LegacyReturn bool `yaml:"legacyReturn" envconfig:"LEGACY_RETURN" default:"false"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
	})

	return cfg
}
