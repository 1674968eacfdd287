package simulated

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
)

var DefaultConfig = Config{
	ChainID:     1337,
	BlockPeriod: 0,
	MaxPending:  4096,
}

type Config struct {
	ChainID     uint64
	BlockPeriod time.Duration // zero mines a block for every submitted transaction
	MaxPending  int
}

func (cfg *Config) Sanitize() error {
	if cfg.ChainID == 0 {
		log.Warn("Sanitizing simulated chain id", "provided", cfg.ChainID, "updated", DefaultConfig.ChainID)
		cfg.ChainID = DefaultConfig.ChainID
	}
	if cfg.BlockPeriod < 0 {
		log.Warn("Sanitizing simulated block period", "provided", cfg.BlockPeriod, "updated", DefaultConfig.BlockPeriod)
		cfg.BlockPeriod = DefaultConfig.BlockPeriod
	}
	if cfg.MaxPending < 1 {
		log.Warn("Sanitizing simulated pending queue", "provided", cfg.MaxPending, "updated", DefaultConfig.MaxPending)
		cfg.MaxPending = DefaultConfig.MaxPending
	}
	return nil
}
