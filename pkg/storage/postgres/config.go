package postgres

import (
	"fmt"
	"net"
	"strconv"
)

// Config carries the connection settings for the sources database.
// Everything defaults to a local development setup so the memory and
// remote storage backends can run without any DB_* variables set.
type Config struct {
	Host        string `env:"DB_HOST,default=localhost"`
	Port        int    `env:"DB_PORT,default=5432"`
	User        string `env:"DB_USER,default=selfoss"`
	Password    string `env:"DB_PASSWORD,default=selfoss"`
	Name        string `env:"DB_NAME,default=selfoss"`
	SSLMode     string `env:"DB_SSL_MODE,default=disable"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE,default=true"`
}

func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		c.User,
		c.Password,
		net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		c.Name,
		c.SSLMode,
	)
}
