package config

import (
	"flag"
	"os"
	"time"

	"github.com/sealdm/sealdm/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-d string   PostgreSQL DSN
//	-r string   Redis address (empty selects the in-process cache)
//	-w string   Redis password
//	-n int      Redis database number
//	-s string   JWT HMAC secret key
//	-t int      session token validity, minutes
//	-l int      viewer cache TTL, minutes
//	-m int      viewer cache cap (items per conversation view)
//	-o int      persistence/cache call timeout, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-r", "-w", "-n", "-s", "-t", "-l", "-m", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.RedisPassword, "w", config.RedisPassword, "redis password")
	fs.IntVar(&config.RedisDB, "n", config.RedisDB, "redis database number")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionTokenValidity := fs.Int("t", int(config.SessionTokenValidity.Minutes()), "session_token_validity (in minutes)")
	cacheTTL := fs.Int("l", int(config.CacheTTL.Minutes()), "cache_ttl (in minutes)")

	fs.IntVar(&config.CacheCap, "m", config.CacheCap, "viewer cache cap")

	callTimeout := fs.Int("o", int(config.CallTimeout.Seconds()), "call_timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTokenValidity = time.Duration(*sessionTokenValidity) * time.Minute
	config.CacheTTL = time.Duration(*cacheTTL) * time.Minute
	config.CallTimeout = time.Duration(*callTimeout) * time.Second
}
