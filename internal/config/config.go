package config

import "os"

type Config struct {
	Addr      string
	JWTSecret string
	JWTIssuer string
}

func Load() Config {
	addr := envString("CONDUIT_ADDR", "")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":8080"
		}
	}
	return Config{
		Addr:      addr,
		JWTSecret: envString("CONDUIT_JWT_SECRET", "dev-jwt-secret"),
		JWTIssuer: envString("CONDUIT_JWT_ISSUER", "com.github.conduit-hq"),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
