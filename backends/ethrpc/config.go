package ethrpc

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
)

var DefaultConfig = Config{
	ChainID:          0,
	GasLimit:         0,
	ReceiptTimeout:   5 * time.Minute,
	WatcherPoolSize:  16,
	ReceiptCacheSize: 1024,
}

type Config struct {
	ChainID          uint64        // zero queries the node
	GasLimit         uint64        // zero estimates gas for every transaction
	ReceiptTimeout   time.Duration // bound of one AwaitReceipt call, watchers wait again after it
	WatcherPoolSize  int
	ReceiptCacheSize int
}

func (cfg *Config) Sanitize() error {
	if cfg.ReceiptTimeout <= 0 {
		log.Warn("Sanitizing receipt timeout", "provided", cfg.ReceiptTimeout, "updated", DefaultConfig.ReceiptTimeout)
		cfg.ReceiptTimeout = DefaultConfig.ReceiptTimeout
	}
	if cfg.WatcherPoolSize < 1 {
		log.Warn("Sanitizing receipt watcher pool size", "provided", cfg.WatcherPoolSize, "updated", DefaultConfig.WatcherPoolSize)
		cfg.WatcherPoolSize = DefaultConfig.WatcherPoolSize
	}
	if cfg.ReceiptCacheSize < 1 {
		log.Warn("Sanitizing receipt cache size", "provided", cfg.ReceiptCacheSize, "updated", DefaultConfig.ReceiptCacheSize)
		cfg.ReceiptCacheSize = DefaultConfig.ReceiptCacheSize
	}
	return nil
}
