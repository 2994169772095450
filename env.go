package sdk

import (
	"fmt"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"

	"github.com/pgsql-project/sdk/driver"
)

// envKeys maps the libpq environment variables onto settings fields.
var envKeys = map[string]string{
	"PGHOST":     "host",
	"PGPORT":     "port",
	"PGDATABASE": "database",
	"PGOPTIONS":  "options",
	"PGUSER":     "user",
	"PGPASSWORD": "password",
}

// DefaultsFromEnv reads the standard libpq environment variables and returns
// them as connection settings, suitable for the Defaults field of a
// connection Config. Unset variables leave their field at the zero value.
func DefaultsFromEnv() (driver.Settings, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: "PG",
		TransformFunc: func(key string, value string) (string, any) {
			if field, ok := envKeys[key]; ok {
				return field, value
			}
			// Unrelated PG* variables are dropped.
			return "", nil
		},
	}), nil); err != nil {
		return driver.Settings{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	settings := driver.Settings{
		Host:     k.String("host"),
		Database: k.String("database"),
		Options:  k.String("options"),
		User:     k.String("user"),
		Password: k.String("password"),
	}
	if k.Exists("port") {
		port := k.Int("port")
		if port <= 0 {
			return driver.Settings{}, fmt.Errorf("invalid PGPORT value %q", k.String("port"))
		}
		settings.Port = port
	}

	return settings, nil
}
