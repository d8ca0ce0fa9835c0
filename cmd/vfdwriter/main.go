// Command vfdwriter demonstrates the writer role: it opens a metadata
// file, drives ticks via the Scheduler's entry/exit hooks, and dirties
// a randomly chosen page on about one tick in four until interrupted.
package main

import (
	"flag"
	"fmt"
	"math/rand"
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
		logger.Fatal("vfdwriter: loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("vfdwriter: invalid config: %v", err)
	}

	handle, err := mdfile.Create(cfg.MDFilePath, cfg.FSPageSize, cfg.MDPagesReserved)
	if err != nil {
		logger.Fatal("vfdwriter: creating metadata file: %v", err)
	}

	pageBuffer := hostcache.NewInMemoryPageBuffer()
	metaCache := hostcache.NewInMemoryMetadataCache()
	sched := scheduler.Global()

	capacity := cfg.IndexCapacity(48, 16)
	ctrl := tick.NewWriterController(handle, capacity, pageBuffer, metaCache, tick.SystemClock{}, sched, cfg.TickLen, cfg.MaxLag)
	sched.Insert(ctrl)

	reg := vfdapi.NewRegistry()
	reg.Register(vfdapi.FileRegistration{Path: cfg.MDFilePath, Role: "writer", Controller: ctrl, Handle: handle})
	if cfg.AdminAddr != "" {
		admin := vfdapi.NewServer(cfg.AdminAddr, reg)
		admin.Start()
		logger.Info("vfdwriter: admin API listening on %s", cfg.AdminAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	logger.Info("vfdwriter: writing %s, tick_len=%d max_lag=%d", cfg.MDFilePath, cfg.TickLen, cfg.MaxLag)

	ticker := time.NewTicker(tick.TickLenToDuration(cfg.TickLen))
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			logger.Info("vfdwriter: draining before close")
			if err := ctrl.FlushOrClosePrep(); err != nil {
				logger.Error("vfdwriter: flush-or-close prep: %v", err)
			}
			sched.Remove(ctrl)
			reg.Unregister(cfg.MDFilePath)
			if err := handle.Close(); err != nil {
				logger.Error("vfdwriter: close: %v", err)
			}
			return
		case <-ticker.C:
			scheduler.OnEntry()
			if rand.Intn(4) == 0 {
				page := uint32(rand.Intn(64))
				image := make([]byte, cfg.FSPageSize)
				for i := range image {
					image[i] = byte(page)
				}
				pageBuffer.MarkDirty(page, image)
				fmt.Fprintf(os.Stderr, "dirtied page %d\n", page)
			}
			scheduler.OnExit()
		}
	}
}
