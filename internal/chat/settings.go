package chat

import (
	"strings"

	gconfig "github.com/Laisky/go-config/v2"
)

// Settings captures runtime configuration for the chat engine.
type Settings struct {
	HistoryWindow   int
	TopKDefault     int
	TopKLimit       int
	DefaultLanguage string
}

// LoadSettingsFromConfig reads the shared configuration and returns a
// sanitized Settings instance.
func LoadSettingsFromConfig() Settings {
	cfg := Settings{
		HistoryWindow:   gconfig.S.GetInt("settings.chat.history_window"),
		TopKDefault:     gconfig.S.GetInt("settings.chat.top_k_default"),
		TopKLimit:       gconfig.S.GetInt("settings.chat.top_k_limit"),
		DefaultLanguage: strings.TrimSpace(gconfig.S.GetString("settings.chat.default_language")),
	}

	return cfg.sanitized()
}

func (cfg Settings) sanitized() Settings {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 20
	}
	if cfg.TopKDefault <= 0 {
		cfg.TopKDefault = 5
	}
	if cfg.TopKLimit <= 0 {
		cfg.TopKLimit = 20
	}
	if cfg.TopKDefault > cfg.TopKLimit {
		cfg.TopKDefault = cfg.TopKLimit
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "English"
	}
	return cfg
}
