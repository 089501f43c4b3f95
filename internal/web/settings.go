package web

import (
	"strings"

	gconfig "github.com/Laisky/go-config/v2"
)

// Settings captures runtime configuration for the HTTP server.
type Settings struct {
	ListenAddr     string
	AllowedOrigins []string
	MaxUploadBytes int64
}

// LoadSettingsFromConfig reads the shared configuration and returns a
// sanitized Settings instance.
func LoadSettingsFromConfig() Settings {
	cfg := Settings{
		ListenAddr:     strings.TrimSpace(gconfig.S.GetString("settings.web.listen")),
		AllowedOrigins: gconfig.S.GetStringSlice("settings.web.allowed_origins"),
		MaxUploadBytes: gconfig.S.GetInt64("settings.web.max_upload_bytes"),
	}

	return cfg.sanitized()
}

func (cfg Settings) sanitized() Settings {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8080"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	return cfg
}
