package config

import (
	"fmt"
	"time"
)

// DB holds the optional snapshot sink's connection settings, each also
// exposed as an individual CLI flag in cli/options. An empty Driver
// disables persistence (pkg/storage falls back to a no-op sink).
type DB struct {
	Driver        string        `yaml:"Driver"`
	Host          string        `yaml:"Host"`
	Port          int           `yaml:"Port"`
	User          string        `yaml:"User"`
	Password      string        `yaml:"Password"`
	Name          string        `yaml:"Name"`
	WriteInterval time.Duration `yaml:"WriteInterval"`
}

// Validate checks the DB configuration is internally consistent. An empty
// Driver is always valid (persistence disabled).
func (d DB) Validate() error {
	if d.Driver == "" {
		return nil
	}
	if d.Driver != "mysql" {
		return fmt.Errorf("unsupported DB driver %q: only \"mysql\" is wired", d.Driver)
	}
	if d.Name == "" {
		return fmt.Errorf("DB.Name must not be empty when DB.Driver is set")
	}
	return nil
}

// DSN renders the MySQL data source name gorm.Open expects.
func (d DB) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.Name)
}
