// Package config is the opaque Config struct §6 hands to the core: network
// selection, storage sync mode, reader-thread count and memory-map resize
// policy. CLI/file loading lives here too, layered the way the teacher's
// cmd/utils/flags.go and cmd/utils/nodecmd/dumpconfigcmd.go layer flags over
// a TOML file over hardcoded defaults — reduced to this core's own concerns,
// since the P2P/RPC flag surface stays out of scope (§1).
package config

import (
	"bufio"
	"os"
	"reflect"

	"github.com/naoina/toml"
	"github.com/pkg/errors"

	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	"git.gammaspectra.live/P2Pool/monero-node-core/dandelion"
	"git.gammaspectra.live/P2Pool/monero-node-core/storage"
	"git.gammaspectra.live/P2Pool/monero-node-core/storage/database"
)

// ResizePolicy describes how the storage tapes grow when a write finds them
// full (§4.3 Failure semantics, §6): InitialBytes for a new tape, a fixed
// StepBytes added on every resize, and MaxRetries resizes per write.
type ResizePolicy struct {
	InitialBytes int64
	StepBytes    int64
	MaxRetries   int
}

// DefaultResizePolicy repeats storage/tape.go's built-in constants
// (tapeGrowStep, maxResizeRetries) so cmd/nodecore has something to
// dump/override. The storage engine does not read this policy: tapes always
// grow by those built-in constants, whatever is configured here.
var DefaultResizePolicy = ResizePolicy{
	InitialBytes: 64 << 20,
	StepBytes:    64 << 20,
	MaxRetries:   3,
}

// Config is the opaque struct §6 describes: "fields for network (main/test/
// stage), sync mode, reader-thread count, and memory-map resize policy."
type Config struct {
	DataDir string

	Network consensus.Network

	DBType           database.DBType
	Sync             storage.SyncMode
	LevelDBCacheSize int
	LevelDBHandles   int
	Resize           ResizePolicy

	// ReaderThreads sizes the storage-read worker pool (§5: "a sane default
	// is max(4, cpu_count)"); 0 means "pick the default at startup."
	ReaderThreads int

	// ComputeWorkers sizes the PoW/signature compute pool (§5); 0 means
	// runtime.GOMAXPROCS(0).
	ComputeWorkers int

	Dandelion dandelion.Config

	// DebugListenAddr, if non-empty, serves the read-only operator stats
	// page (§6 External interfaces note: a stats page, not the excluded RPC
	// server).
	DebugListenAddr string
}

// DefaultConfig mirrors the teacher's defaultNodeConfig()/cn.DefaultConfig
// pattern: sane values a node can run with before any flag or file is
// applied.
func DefaultConfig() Config {
	return Config{
		DataDir:          "./data",
		Network:          consensus.Mainnet,
		DBType:           database.LevelDB,
		Sync:             storage.SyncSafe,
		LevelDBCacheSize: 16,
		LevelDBHandles:   16,
		Resize:           DefaultResizePolicy,
		ReaderThreads:    0,
		ComputeWorkers:   0,
		Dandelion:        dandelion.DefaultConfig,
		DebugListenAddr:  "127.0.0.1:18089",
	}
}

// tomlSettings mirrors the teacher's tomlSettings (cmd/utils/nodecmd/
// dumpconfigcmd.go): TOML keys match Go field names verbatim, and an unknown
// field in the file is a load error rather than silently ignored.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return errors.Errorf("field %q is not defined in %s", field, rt.String())
	},
}

// LoadFile reads a TOML config file into cfg, starting from DefaultConfig()
// and overriding whatever the file specifies.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrap(err, "open config file")
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		if lerr, ok := err.(*toml.LineError); ok {
			return cfg, errors.Errorf("%s: %v", path, lerr)
		}
		return cfg, err
	}
	return cfg, nil
}

// Dump renders cfg as TOML, matching the teacher's `dumpconfig` command
// (cmd/utils/nodecmd/dumpconfigcmd.go's dumpConfig).
func Dump(cfg Config) ([]byte, error) {
	return tomlSettings.Marshal(&cfg)
}
