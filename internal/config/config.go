// Package config loads the server's runtime settings by merging
// defaults, an optional YAML file, and MINIREDIS_* environment
// variables, in that order of increasing precedence.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/elastic/go-ucfg"
	"github.com/elastic/go-ucfg/yaml"
)

// Config holds the settings the server needs to bind a socket, admit
// connections, and log.
type Config struct {
	Port           int    `config:"port"`
	MaxConnections int64  `config:"max_connections"`
	LogLevel       string `config:"log_level"`
}

// Defaults returns the settings used when nothing else overrides them.
func Defaults() Config {
	return Config{
		Port:           6379,
		MaxConnections: 250,
		LogLevel:       "info",
	}
}

// Load merges Defaults, the YAML file at path (skipped if path is
// empty), and MINIREDIS_* environment variables.
func Load(path string) (Config, error) {
	out := Defaults()

	merged, err := ucfg.NewFrom(out, ucfg.PathSep("."))
	if err != nil {
		return out, err
	}

	if path != "" {
		fileCfg, err := yaml.NewConfigWithFile(path, ucfg.PathSep("."))
		if err != nil {
			return out, err
		}
		if err := merged.Merge(fileCfg); err != nil {
			return out, err
		}
	}

	if env := fromEnviron(); len(env) > 0 {
		envCfg, err := ucfg.NewFrom(env, ucfg.PathSep("."))
		if err != nil {
			return out, err
		}
		if err := merged.Merge(envCfg); err != nil {
			return out, err
		}
	}

	if err := merged.Unpack(&out); err != nil {
		return out, err
	}
	return out, nil
}

// fromEnviron collects MINIREDIS_* variables into the same key shape
// Config's struct tags expect, coercing the numeric fields.
func fromEnviron() map[string]interface{} {
	out := map[string]interface{}{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, "MINIREDIS_") {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(k, "MINIREDIS_"))
		switch key {
		case "port":
			if n, err := strconv.Atoi(v); err == nil {
				out[key] = n
			}
		case "max_connections":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				out[key] = n
			}
		default:
			out[key] = v
		}
	}
	return out
}
