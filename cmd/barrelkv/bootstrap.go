package main

import (
	"log"
	"os"

	"github.com/google/uuid"
	"go.uber.org/dig"

	"barrelkv"
)

// run wires config -> logger -> barrelkv.DB -> stats server through a dig
// container, mirroring _examples/catalinm00-KVDB/bootstrap/bootstrap.go's
// container.Provide/container.Invoke shape.
func run() error {
	container := dig.New()

	providers := []interface{}{
		LoadConfig,
		newLogger,
		newCorrelationID,
		openDatabase,
		newStatsServerFromConfig,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}

	return container.Invoke(func(s *statsServer, logger *log.Logger, corrID string) error {
		logger.Printf("[%s] barrelkv starting", corrID)
		return s.Run()
	})
}

func newLogger() *log.Logger {
	return log.New(os.Stderr, "barrelkv: ", log.LstdFlags)
}

// newCorrelationID stamps one id per process invocation, matching the
// teacher's use of google/uuid for per-transaction ids in
// internal/domain/transaction.go — here scoped to the whole process
// rather than a single request.
func newCorrelationID() string {
	return uuid.NewString()
}

func openDatabase(cfg Config, logger *log.Logger) (*barrelkv.DB, error) {
	cfg, err := applyOverlay(cfg, cfg.ConfigURL)
	if err != nil {
		return nil, err
	}
	return barrelkv.Open(barrelkv.Options{
		DirPath:      cfg.DirPath,
		SegmentSize:  cfg.SegmentSize,
		BlockCache:   cfg.BlockCache,
		SyncWrite:    cfg.SyncWrite,
		BytesPerSync: cfg.BytesPerSync,
		Logger:       logger,
	})
}

func newStatsServerFromConfig(cfg Config, db *barrelkv.DB, corrID string, logger *log.Logger) *statsServer {
	return newStatsServer(db, cfg.HTTPAddr, corrID, logger)
}
