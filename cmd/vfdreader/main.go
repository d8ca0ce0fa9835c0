// Command vfdreader demonstrates the reader role: it opens an
// existing metadata file read-only and drives ticks via the
// Scheduler's entry/exit hooks, logging the observed tick number after
// each cycle.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vfdswmr/config"
	"vfdswmr/hostcache"
	"vfdswmr/logger"
	"vfdswmr/mdfile"
	"vfdswmr/scheduler"
	"vfdswmr/tick"
	"vfdswmr/vfdapi"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	logger.Configure()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("vfdreader: loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("vfdreader: invalid config: %v", err)
	}

	handle, err := mdfile.Open(cfg.MDFilePath)
	if err != nil {
		logger.Fatal("vfdreader: opening metadata file: %v", err)
	}
	handle.SetRetryBudget(cfg.ReaderRetryBudget)

	pageBuffer := hostcache.NewInMemoryPageBuffer()
	metaCache := hostcache.NewInMemoryMetadataCache()
	sched := scheduler.Global()

	capacity := cfg.IndexCapacity(48, 16)
	ctrl := tick.NewReaderController(handle, capacity, pageBuffer, metaCache, tick.SystemClock{}, sched, cfg.TickLen)
	sched.Insert(ctrl)

	reg := vfdapi.NewRegistry()
	reg.Register(vfdapi.FileRegistration{Path: cfg.MDFilePath, Role: "reader", Controller: ctrl, Handle: handle})
	if cfg.AdminAddr != "" {
		admin := vfdapi.NewServer(cfg.AdminAddr, reg)
		admin.Start()
		logger.Info("vfdreader: admin API listening on %s", cfg.AdminAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	logger.Info("vfdreader: watching %s, tick_len=%d", cfg.MDFilePath, cfg.TickLen)

	ticker := time.NewTicker(tick.TickLenToDuration(cfg.TickLen))
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			sched.Remove(ctrl)
			reg.Unregister(cfg.MDFilePath)
			if err := handle.Close(); err != nil {
				logger.Error("vfdreader: close: %v", err)
			}
			return
		case <-ticker.C:
			scheduler.OnEntry()
			scheduler.OnExit()
			logger.Debug("vfdreader: observed tick %d", ctrl.TickNum())
		}
	}
}
