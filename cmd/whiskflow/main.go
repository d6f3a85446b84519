package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/siqueiraa/WhiskFlow/pkg/codec"
	"github.com/siqueiraa/WhiskFlow/pkg/config"
	"github.com/siqueiraa/WhiskFlow/pkg/engine"
	"github.com/siqueiraa/WhiskFlow/pkg/event"
	"github.com/siqueiraa/WhiskFlow/pkg/journal"
	"github.com/siqueiraa/WhiskFlow/pkg/poller"
	"github.com/siqueiraa/WhiskFlow/pkg/sched"
	"github.com/siqueiraa/WhiskFlow/pkg/sink"
	"github.com/siqueiraa/WhiskFlow/pkg/track"
	"github.com/siqueiraa/WhiskFlow/pkg/whisk"
)

func main() {
	log.Println("[Main] Starting WhiskFlow...")

	cfg := config.Load("config.yaml")
	if err := config.Validate(&cfg); err != nil {
		log.Fatalf("[Main] Invalid configuration: %v", err)
	}

	defs, err := poller.LoadDir(cfg.PollersDir)
	if err != nil {
		log.Fatalf("[Main] Failed to load pollers: %v", err)
	}
	log.Printf("[Main] Loaded %d poller(s)", len(defs))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, err := buildSink(ctx, &cfg)
	if err != nil {
		log.Fatalf("[Main] Failed to build sink: %v", err)
	}

	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		jnl, err = journal.Open(cfg.Journal.Path, cfg.Journal.TTL)
		if err != nil {
			log.Fatalf("[Main] Failed to open journal: %v", err)
		}
		if counts, statErr := jnl.CountByPoller(); statErr == nil {
			for name, n := range counts {
				log.Printf("[Journal] Poller: %s | Records: %d", name, n)
			}
		}
	}

	host := hostname()
	transport := whisk.NewClient(cfg.Timeout)

	var schedulers []*sched.Scheduler
	var coordinators []*engine.Coordinator

	for _, def := range defs {
		trigger, trigErr := def.Trigger()
		if trigErr != nil {
			log.Fatalf("[Main] Poller %s: %v", def.Name, trigErr)
		}

		conn := whisk.Connection{
			Host:      def.Host,
			Namespace: def.Namespace,
			Principal: def.Principal,
			Secret:    def.Secret,
		}
		events := event.New(def.Name, host, def.Target, def.MetadataField(), out)
		coord := engine.New(def.Name, conn, transport, codec.NewJSON(), track.New(), events, jnl)

		schedulers = append(schedulers, sched.New(def.Name, trigger, coord.Poll))
		coordinators = append(coordinators, coord)
	}

	for _, s := range schedulers {
		s.Start(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		statsLoop(gctx, cfg.StatsInterval, coordinators)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("[Main] Shutting down...")
		for _, c := range coordinators {
			c.Stop()
		}
		for _, s := range schedulers {
			s.Stop()
		}
		return nil
	})
	_ = g.Wait()

	if err := out.Close(); err != nil {
		log.Printf("[Main] Sink close: %v", err)
	}
	if jnl != nil {
		if err := jnl.Close(); err != nil {
			log.Printf("[Main] Journal close: %v", err)
		}
	}
	log.Println("[Main] Stopped")
}

func buildSink(ctx context.Context, cfg *config.AppConfig) (sink.Sink, error) {
	switch cfg.Sink.Type {
	case "kafka":
		return sink.NewKafka(cfg.Sink.Kafka)
	case "s3":
		return sink.NewS3(ctx, cfg.Sink.S3)
	default:
		return sink.NewStdout(), nil
	}
}

func statsLoop(ctx context.Context, interval time.Duration, coordinators []*engine.Coordinator) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range coordinators {
				c.LogStats()
			}
		}
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
