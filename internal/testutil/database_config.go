package testutil

import (
	"net"
	"net/url"
	"os"
)

// DatabaseConfig points the tests at an externally managed server instead
// of a container.
type DatabaseConfig struct {
	URL string
}

// GetDatabaseConfig reads DATABASE_URL, or builds a URL from DATABASE_HOST
// and the other DATABASE_* variables. It returns an empty config when
// neither is set.
func GetDatabaseConfig() DatabaseConfig {
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		return DatabaseConfig{URL: raw}
	}
	host := os.Getenv("DATABASE_HOST")
	if host == "" {
		return DatabaseConfig{}
	}

	u := &url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, envOr("DATABASE_PORT", "5432")),
		Path:     "/" + envOr("DATABASE_NAME", "postgres"),
		RawQuery: url.Values{"sslmode": {envOr("DATABASE_SSLMODE", "disable")}}.Encode(),
	}
	user := envOr("DATABASE_USER", "postgres")
	if password := os.Getenv("DATABASE_PASSWORD"); password != "" {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}
	return DatabaseConfig{URL: u.String()}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
