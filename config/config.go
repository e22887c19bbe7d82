package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabasePath   string
	ServerPort     string
	Timezone       *time.Location
	PushURL        string
	PushKey        string
	AdminEmails    []string
	AllowedOrigins []string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/combiapp.db"
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	// The service runs in a single fixed timezone; every window and
	// cutoff decision is made in it.
	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "America/Argentina/Buenos_Aires"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	pushURL := os.Getenv("PUSH_RELAY_URL")
	if pushURL == "" {
		return nil, fmt.Errorf("PUSH_RELAY_URL is required")
	}
	pushKey := os.Getenv("PUSH_RELAY_KEY")

	var admins []string
	for _, e := range strings.Split(os.Getenv("ADMIN_EMAILS"), ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			admins = append(admins, e)
		}
	}

	origins := []string{"http://localhost:3000"}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		origins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return &Config{
		DatabasePath:   dbPath,
		ServerPort:     serverPort,
		Timezone:       tz,
		PushURL:        pushURL,
		PushKey:        pushKey,
		AdminEmails:    admins,
		AllowedOrigins: origins,
	}, nil
}

// IsAdminEmail reports whether the email is on the static admin allow-list.
// Riders can additionally be flagged as admin in the users directory.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(email)
	for _, a := range c.AdminEmails {
		if a == email {
			return true
		}
	}
	return false
}
