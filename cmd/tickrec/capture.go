package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"tickrec/internal/capture"
	"tickrec/internal/obs"
	"tickrec/internal/ops"
)

var (
	captureSessions int
	captureWatch    []string
	captureFeed     string
	captureFor      time.Duration
	captureMemEvery time.Duration
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Subscribe the watch list and append every update to the daily log",
	RunE: func(cmd *cobra.Command, args []string) error {
		if captureMemEvery > 0 {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go obs.ReportMemory(ctx, captureMemEvery)
			return runCapture(ctx, loaded, captureFor)
		}
		return runCapture(cmd.Context(), loaded, captureFor)
	},
}

func init() {
	captureCmd.Flags().IntVar(&captureSessions, "sessions", 0, "number of feed sessions")
	captureCmd.Flags().StringSliceVar(&captureWatch, "watch", nil, "instrument keys to subscribe")
	captureCmd.Flags().StringVar(&captureFeed, "feed", "", "feed kind: sim|binance")
	captureCmd.Flags().DurationVar(&captureFor, "for", 0, "stop after this long, 0 runs until interrupted")
	captureCmd.Flags().DurationVar(&captureMemEvery, "mem-report", 0, "log runtime memory usage at this interval")
	rootCmd.AddCommand(captureCmd)

	overrides[captureCmd.Name()] = func(cmd *cobra.Command, fc *ops.FileConfig) error {
		flags := cmd.Flags()
		if flags.Changed("sessions") {
			fc.Capture.Sessions = captureSessions
		}
		if flags.Changed("watch") {
			fc.Capture.WatchList = captureWatch
		}
		if flags.Changed("feed") {
			fc.Feed.Kind = captureFeed
		}
		return nil
	}
}

func runCapture(ctx context.Context, l ops.Loaded, limit time.Duration) error {
	refs, closeRefs, err := l.NewProvider(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeRefs(); err != nil {
			logs.Errorf("close reference data, err: %+v", err)
		}
	}()

	svc, err := capture.New(l.Capture, refs, l.NewFeedFactory())
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- svc.Watch(watchCtx, l.File.Capture.WatchInterval.Std())
	}()

	var deadline <-chan time.Time
	if limit > 0 {
		t := time.NewTimer(limit)
		defer t.Stop()
		deadline = t.C
	}

	select {
	case err := <-watchErr:
		logMetrics(svc.Metrics())
		return err
	case <-sys.Shutdown():
		logs.Info("shutdown signal received")
	case <-deadline:
	case <-ctx.Done():
	}

	cancel()
	err = svc.Stop()
	logMetrics(svc.Metrics())
	return err
}

func logMetrics(m obs.Snapshot) {
	logs.Infof("captured: %d, persisted: %d, secondary: %d, dropped: %d, status events: %d, cycles: %d, flush avg: %s, max: %s",
		m.Captured, m.Persisted, m.SecondaryRecords, m.Dropped, m.StatusEvents, m.WriterCycles, m.FlushLatency.Avg, m.FlushLatency.Max)
}
