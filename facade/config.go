package facade

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/naoina/toml"
	"github.com/verichains/ethproxy/backends/ethrpc"
	"github.com/verichains/ethproxy/backends/simulated"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

var DefaultConfig = Config{
	DatabaseCache:   16,
	DatabaseHandles: 16,
	AwaitTimeout:    2 * time.Minute,
	RPC:             ethrpc.DefaultConfig,
	Simulated:       simulated.DefaultConfig,
}

type Config struct {
	DataDir         string `toml:",omitempty"` // contract store directory, in memory when empty
	DatabaseCache   int    `toml:",omitempty"`
	DatabaseHandles int    `toml:"-"`
	RPCUrl          string `toml:",omitempty"`

	// AwaitTimeout bounds the waits the facade does on behalf of the caller,
	// e.g. in PublishAndWait.
	AwaitTimeout time.Duration

	RPC       ethrpc.Config
	Simulated simulated.Config
}

func (c *Config) Sanitize() error {
	if c.DatabaseCache < 0 {
		log.Warn("Sanitizing database cache", "provided", c.DatabaseCache, "updated", DefaultConfig.DatabaseCache)
		c.DatabaseCache = DefaultConfig.DatabaseCache
	}
	if c.DatabaseHandles <= 0 {
		c.DatabaseHandles = DefaultConfig.DatabaseHandles
	}
	if c.AwaitTimeout <= 0 {
		log.Warn("Sanitizing await timeout", "provided", c.AwaitTimeout, "updated", DefaultConfig.AwaitTimeout)
		c.AwaitTimeout = DefaultConfig.AwaitTimeout
	}
	if err := c.RPC.Sanitize(); err != nil {
		return err
	}
	return c.Simulated.Sanitize()
}

// LoadConfig reads a TOML file over cfg. Keys that do not match a field are
// an error.
func LoadConfig(filename string, cfg *Config) error {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return tomlSettings.Unmarshal(buf, cfg)
}

func SaveConfig(filename string, cfg *Config) error {
	buf, err := tomlSettings.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, buf, 0644)
}
