package service

import (
	"time"

	"github.com/dgallion1/docnav/internal/config"
)

// OptionsFromConfig maps configuration onto Navigator options. Metrics
// are left for the caller.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Chunking:   cfg.Chunking(),
		Proximity:  cfg.ContextProximity,
		Strict:     cfg.StrictEditBatches,
		IDCacheTTL: cfg.IDCacheTTL,
		Stats:      NewLatencyStats(time.Hour),
	}
}
