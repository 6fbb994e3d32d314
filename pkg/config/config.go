// Package config resolves typed configuration from the environment.
// Each subsystem of the travel agent declares an envconfig struct and
// loads it under its own prefix: APP for the composition root, SERVER
// for HTTP, OPENROUTER for the model, POSTGRES and UPSTASH_REDIS for
// the backends, QSTASH for notifications, POLICY_RAG for policy
// retrieval and LOG for the logger.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

var (
	envFilePath string
	resolveOnce sync.Once
)

// MustNew loads a prefixed config or panics. Startup wiring only; a
// missing required variable should stop the process before it serves.
func MustNew[T any](prefix string) *T {
	conf, err := New[T](prefix)
	if err != nil {
		panic(fmt.Sprintf("config %s: %v", prefix, err))
	}
	return conf
}

// New exports the env file into the process environment, then fills a
// T from variables under prefix. The file is taken from the -env-file
// flag, the ENV_FILE variable, or ./.env when present.
func New[T any](prefix string) (*T, error) {
	if path := resolveEnvFile(); path != "" {
		if err := exportEnvFile(path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	} else if err := exportEnvFileIfExists(".env"); err != nil {
		return nil, fmt.Errorf("load default env file: %w", err)
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func resolveEnvFile() string {
	resolveOnce.Do(func() {
		if flag.Lookup("env-file") == nil {
			flag.StringVar(&envFilePath, "env-file", "", "path to an env file exported before config loads")
		}
		if !flag.Parsed() {
			flag.Parse()
		}
		if envFilePath == "" {
			envFilePath = os.Getenv("ENV_FILE")
		}
	})
	return strings.TrimSpace(envFilePath)
}

func exportEnvFileIfExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	return exportEnvFile(path)
}

// exportEnvFile sets every key from the file that the environment does
// not already carry, so real environment variables win over file
// values.
func exportEnvFile(path string) error {
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return err
	}

	for k, v := range viper.AllSettings() {
		key := strings.ToUpper(k)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(v)); err != nil {
			return err
		}
	}
	return nil
}
