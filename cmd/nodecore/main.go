// Command nodecore wires C2-C7 into one running process, the way the
// teacher's cmd/kcn/main.go turns cmd/utils flags into a running node:
// parse flags, layer them over an optional TOML file, open storage, seed
// the context engine from it, and serve the operator stats page. It does
// not speak P2P or RPC (§1 Deliberately excluded): there is no downloader
// feeding SubmitBlock here, the Dandelion++ broadcast and
// cryptographic-primitive seams are wired to collaborators that panic if
// ever invoked, and peer discovery is wired to a source that offers no
// peers, in place of the external layers (§1) this core is driven by.
package main

import (
	stdcontext "context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"git.gammaspectra.live/P2Pool/monero-node-core/config"
	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	chainctx "git.gammaspectra.live/P2Pool/monero-node-core/context"
	"git.gammaspectra.live/P2Pool/monero-node-core/dandelion"
	"git.gammaspectra.live/P2Pool/monero-node-core/dispatch"
	"git.gammaspectra.live/P2Pool/monero-node-core/internal/xlog"
	"git.gammaspectra.live/P2Pool/monero-node-core/storage"
	"git.gammaspectra.live/P2Pool/monero-node-core/txpool"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
	"git.gammaspectra.live/P2Pool/monero-node-core/verifier"
)

var logger = xlog.NewModuleLogger(xlog.ModuleService)

func main() {
	app := cli.NewApp()
	app.Name = "nodecore"
	app.Usage = "Monero-compatible consensus core (storage, context, verifier, txpool, dandelion)"
	app.Flags = config.Flags
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	cfg, err := config.FromCLI(cliCtx)
	if err != nil {
		return err
	}

	store, err := storage.New(storage.Config{
		Dir:              cfg.DataDir,
		DBType:           cfg.DBType,
		LevelDBCacheSize: cfg.LevelDBCacheSize,
		LevelDBHandles:   cfg.LevelDBHandles,
		Sync:             cfg.Sync,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	mainCtx := chainctx.NewMainContext(cfg.Network)
	if height := store.ChainHeight(); height > 0 {
		tail, err := store.ChainTail(height - 1)
		if err != nil {
			return err
		}
		mainCtx.Seed(tail)
	}

	pool := verifier.NewComputePool(cfg.ComputeWorkers)
	reorg := &verifier.ReorgLock{}
	v := verifier.New(mainCtx, store, pool, reorg, unimplementedPow{}, unimplementedVMBuilder, unimplementedSig{})

	txPool := txpool.New()

	router := dandelion.NewRouter[dispatch.PeerID, txpool.Entry](noDiffuseSink{}, noPeerSource{}, cfg.Dandelion)
	manager := dandelion.NewPoolManager[txpool.Entry, ctypes.Hash, dispatch.PeerID](router, txPool, cfg.Dandelion)

	runCtx, cancel := stdcontext.WithCancel(stdcontext.Background())
	defer cancel()
	go manager.Run(runCtx)

	svc := dispatch.New(mainCtx, store, v, txPool, router, manager, reorg, cfg.ReaderThreads)

	logger.Infow("nodecore started", "network", cfg.Network, "chain_height", store.ChainHeight(), "datadir", cfg.DataDir)

	var httpSrv *http.Server
	if cfg.DebugListenAddr != "" {
		httpSrv = &http.Server{Addr: cfg.DebugListenAddr, Handler: svc.StatsHandler()}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorw("stats server stopped", "err", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Infow("nodecore shutting down")

	if httpSrv != nil {
		shutdownCtx, shutdownCancel := stdcontext.WithTimeout(stdcontext.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// The three collaborators below are the cryptographic-primitive seam §1
// excludes from this core (RandomX/CryptoNight hashing, curve-level
// signature checks). A standalone nodecore binary has nothing to verify
// without a P2P layer feeding it blocks in the first place, so rather than
// fabricate a fake implementation, these panic if ever called, documenting
// the seam an embedding P2P/RPC binary is expected to fill in with the real
// thing.
type unimplementedPow struct{}

func (unimplementedPow) Hash(consensus.PowAlgorithm, ctypes.Block, chainctx.RandomXVM) (ctypes.Hash, error) {
	panic("nodecore: no PoW hasher wired; embed this core behind a real cryptographic-primitives collaborator")
}

type unimplementedSig struct{}

func (unimplementedSig) VerifyRingSignatures(ctypes.Transaction, [][]verifier.RingMember) error {
	panic("nodecore: no signature verifier wired; embed this core behind a real cryptographic-primitives collaborator")
}

func unimplementedVMBuilder(ctypes.Hash) (chainctx.RandomXVM, error) {
	panic("nodecore: no RandomX VM builder wired; embed this core behind a real cryptographic-primitives collaborator")
}

type noDiffuseSink struct{}

func (noDiffuseSink) Diffuse(txpool.Entry) error {
	panic("nodecore: no P2P broadcast sink wired for Dandelion++ fluff")
}

type noPeerSource struct{}

func (noPeerSource) Peers() <-chan dandelion.OutboundPeer[dispatch.PeerID, txpool.Entry] {
	ch := make(chan dandelion.OutboundPeer[dispatch.PeerID, txpool.Entry])
	close(ch)
	return ch
}
