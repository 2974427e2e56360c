package config

import (
	"github.com/urfave/cli"

	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	"git.gammaspectra.live/P2Pool/monero-node-core/storage"
	"git.gammaspectra.live/P2Pool/monero-node-core/storage/database"
)

// Flags is the CLI flag surface mirroring the teacher's cmd/utils/flags.go,
// reduced to this core's own concerns (§6 CLI/config: "no P2P/RPC flags,
// which remain out of scope").
var (
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the storage engine",
		Value: "./data",
	}
	NetworkFlag = cli.StringFlag{
		Name:  "network",
		Usage: `Consensus network ("main", "test", "stage")`,
		Value: "main",
	}
	DBTypeFlag = cli.StringFlag{
		Name:  "db.type",
		Usage: `Storage backend ("leveldb", "badger", "memory")`,
		Value: "leveldb",
	}
	DBSyncModeFlag = cli.StringFlag{
		Name:  "db.sync",
		Usage: `Tape flush policy ("safe", "async", "fast")`,
		Value: "safe",
	}
	LevelDBCacheSizeFlag = cli.IntFlag{
		Name:  "db.leveldb.cache-size",
		Usage: "Size of in-memory cache in LevelDB (MiB)",
		Value: 16,
	}
	LevelDBHandlesFlag = cli.IntFlag{
		Name:  "db.leveldb.handles",
		Usage: "Number of file handles LevelDB may keep open",
		Value: 16,
	}
	ReaderThreadsFlag = cli.IntFlag{
		Name:  "storage.reader-threads",
		Usage: "Size of the storage read-worker pool (0 = max(4, NumCPU))",
	}
	ComputeWorkersFlag = cli.IntFlag{
		Name:  "verifier.compute-workers",
		Usage: "Size of the PoW/signature compute pool (0 = GOMAXPROCS)",
	}
	DebugListenAddrFlag = cli.StringFlag{
		Name:  "debug.addr",
		Usage: "Listen address for the read-only operator stats page (empty disables it)",
		Value: "127.0.0.1:18089",
	}
	ConfigFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
)

// Flags is the full flag set a cmd/nodecore cli.App registers.
var Flags = []cli.Flag{
	DataDirFlag,
	NetworkFlag,
	DBTypeFlag,
	DBSyncModeFlag,
	LevelDBCacheSizeFlag,
	LevelDBHandlesFlag,
	ReaderThreadsFlag,
	ComputeWorkersFlag,
	DebugListenAddrFlag,
	ConfigFileFlag,
}

func parseNetwork(s string) consensus.Network {
	switch s {
	case "test":
		return consensus.Testnet
	case "stage":
		return consensus.Stagenet
	default:
		return consensus.Mainnet
	}
}

func parseDBType(s string) database.DBType {
	switch s {
	case "badger":
		return database.BadgerDB
	case "memory":
		return database.MemoryDB
	default:
		return database.LevelDB
	}
}

func parseSyncMode(s string) storage.SyncMode {
	switch s {
	case "async":
		return storage.SyncAsync
	case "fast":
		return storage.SyncFast
	default:
		return storage.SyncSafe
	}
}

// FromCLI builds a Config from flag values, first loading ConfigFileFlag (if
// set) over DefaultConfig() and then letting explicitly-set flags override
// the file — mirroring the teacher's makeConfigNode layering (config file,
// then flags, each only overriding what it actually sets).
func FromCLI(ctx *cli.Context) (Config, error) {
	var cfg Config
	if file := ctx.GlobalString(ConfigFileFlag.Name); file != "" {
		var err error
		cfg, err = LoadFile(file)
		if err != nil {
			return cfg, err
		}
	} else {
		cfg = DefaultConfig()
	}

	if ctx.GlobalIsSet(DataDirFlag.Name) {
		cfg.DataDir = ctx.GlobalString(DataDirFlag.Name)
	}
	if ctx.GlobalIsSet(NetworkFlag.Name) {
		cfg.Network = parseNetwork(ctx.GlobalString(NetworkFlag.Name))
	}
	if ctx.GlobalIsSet(DBTypeFlag.Name) {
		cfg.DBType = parseDBType(ctx.GlobalString(DBTypeFlag.Name))
	}
	if ctx.GlobalIsSet(DBSyncModeFlag.Name) {
		cfg.Sync = parseSyncMode(ctx.GlobalString(DBSyncModeFlag.Name))
	}
	if ctx.GlobalIsSet(LevelDBCacheSizeFlag.Name) {
		cfg.LevelDBCacheSize = ctx.GlobalInt(LevelDBCacheSizeFlag.Name)
	}
	if ctx.GlobalIsSet(LevelDBHandlesFlag.Name) {
		cfg.LevelDBHandles = ctx.GlobalInt(LevelDBHandlesFlag.Name)
	}
	if ctx.GlobalIsSet(ReaderThreadsFlag.Name) {
		cfg.ReaderThreads = ctx.GlobalInt(ReaderThreadsFlag.Name)
	}
	if ctx.GlobalIsSet(ComputeWorkersFlag.Name) {
		cfg.ComputeWorkers = ctx.GlobalInt(ComputeWorkersFlag.Name)
	}
	if ctx.GlobalIsSet(DebugListenAddrFlag.Name) {
		cfg.DebugListenAddr = ctx.GlobalString(DebugListenAddrFlag.Name)
	}
	return cfg, nil
}
