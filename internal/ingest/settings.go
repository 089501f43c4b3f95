package ingest

import (
	"time"

	gconfig "github.com/Laisky/go-config/v2"
)

// Settings captures runtime configuration for the ingestion pipeline.
type Settings struct {
	ChunkSize          int
	ChunkOverlap       int
	EmbedConcurrency   int
	Workers            int
	ShortTextThreshold int
	TitleCheckWindow   int
	SignedURLTTL       time.Duration
}

// LoadSettingsFromConfig reads the shared configuration and returns a
// sanitized Settings instance.
func LoadSettingsFromConfig() Settings {
	cfg := Settings{
		ChunkSize:          gconfig.S.GetInt("settings.ingest.chunk_size"),
		ChunkOverlap:       gconfig.S.GetInt("settings.ingest.chunk_overlap"),
		EmbedConcurrency:   gconfig.S.GetInt("settings.ingest.embed_concurrency"),
		Workers:            gconfig.S.GetInt("settings.ingest.workers"),
		ShortTextThreshold: gconfig.S.GetInt("settings.ingest.short_text_threshold"),
		TitleCheckWindow:   gconfig.S.GetInt("settings.ingest.title_check_window"),
		SignedURLTTL:       gconfig.S.GetDuration("settings.ingest.signed_url_ttl"),
	}

	return cfg.sanitized()
}

func (cfg Settings) sanitized() Settings {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 4
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.ShortTextThreshold <= 0 {
		cfg.ShortTextThreshold = 200
	}
	if cfg.TitleCheckWindow <= 0 {
		cfg.TitleCheckWindow = 4000
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 15 * time.Minute
	}
	return cfg
}
