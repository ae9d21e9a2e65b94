package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/sealdm/sealdm/internal/flagx"
	"github.com/sealdm/sealdm/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "1h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP     string         `json:"endpoint_addr_http"`
	DatabaseDSN          string         `json:"database_dsn"`
	RedisAddr            string         `json:"redis_addr"`
	RedisPassword        string         `json:"redis_password"`
	RedisDB              int            `json:"redis_db"`
	SecretKey            string         `json:"secret_key"`
	SessionTokenValidity timex.Duration `json:"session_token_validity"`
	CacheTTL             timex.Duration `json:"cache_ttl"`
	CacheCap             int            `json:"cache_cap"`
	CallTimeout          timex.Duration `json:"call_timeout"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; when neither is set, no JSON file is loaded. An unreadable or
// invalid file panics: a half-applied config is worse than no server.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.RedisAddr = c.RedisAddr
	config.RedisPassword = c.RedisPassword
	config.RedisDB = c.RedisDB
	config.SecretKey = c.SecretKey
	config.SessionTokenValidity = time.Duration(c.SessionTokenValidity.Duration)
	config.CacheTTL = time.Duration(c.CacheTTL.Duration)
	config.CacheCap = c.CacheCap
	config.CallTimeout = time.Duration(c.CallTimeout.Duration)
}
