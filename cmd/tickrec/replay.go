package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"tickrec/internal/ops"
	"tickrec/internal/replay"
)

var (
	replayStart  string
	replayEnd    string
	replayRetain []string
	replayLoop   bool
	replayPacing string
	replaySpeed  float64
	replayMaxGap time.Duration
	replaySink   string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay the daily logs of a time window to a sink",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(cmd.Context(), loaded)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayStart, "start", "", "window start, inclusive (RFC3339 or 2006-01-02[ 15:04:05], UTC)")
	replayCmd.Flags().StringVar(&replayEnd, "end", "", "window end, inclusive")
	replayCmd.Flags().StringSliceVar(&replayRetain, "retain", nil, "resolved ids to deliver, empty delivers all")
	replayCmd.Flags().BoolVar(&replayLoop, "loop", false, "repeat the window until interrupted")
	replayCmd.Flags().StringVar(&replayPacing, "pacing", "", "pacing: fast|original")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "original pacing speed multiplier")
	replayCmd.Flags().DurationVar(&replayMaxGap, "max-gap", 0, "cap on a single original pacing wait, 0 is uncapped")
	replayCmd.Flags().StringVar(&replaySink, "sink", "", "sink: json|nats|kafka")
	rootCmd.AddCommand(replayCmd)

	overrides[replayCmd.Name()] = func(cmd *cobra.Command, fc *ops.FileConfig) error {
		flags := cmd.Flags()
		if flags.Changed("start") {
			t, err := ops.ParseTime(replayStart)
			if err != nil {
				return err
			}
			fc.Replay.Start = ops.Time(t)
		}
		if flags.Changed("end") {
			t, err := ops.ParseTime(replayEnd)
			if err != nil {
				return err
			}
			fc.Replay.End = ops.Time(t)
		}
		if flags.Changed("retain") {
			fc.Replay.Retain = replayRetain
		}
		if flags.Changed("loop") {
			fc.Replay.Loop = replayLoop
		}
		if flags.Changed("pacing") {
			fc.Replay.Pacing = replayPacing
		}
		if flags.Changed("speed") {
			fc.Replay.Speed = replaySpeed
		}
		if flags.Changed("max-gap") {
			fc.Replay.MaxGap = ops.Duration(replayMaxGap)
		}
		if flags.Changed("sink") {
			fc.Sink.Kind = replaySink
		}
		return nil
	}
}

func runReplay(ctx context.Context, l ops.Loaded) error {
	receiver, closeReceiver, err := l.NewReceiver(os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeReceiver(); err != nil {
			logs.Errorf("close sink, err: %+v", err)
		}
	}()

	r, err := replay.New(l.Replay, receiver)
	if err != nil {
		return err
	}
	if err := r.Start(ctx); err != nil {
		return err
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sys.Shutdown():
			logs.Info("shutdown signal received")
			cancel()
		case <-waitCtx.Done():
		}
	}()

	waitErr := r.Wait(waitCtx)
	stopErr := r.Stop()

	m := r.Metrics()
	logs.Infof("loaded: %d, filtered: %d, delivered: %d, missing files: %d, pacing lag avg: %s, max: %s",
		m.Loaded, m.Filtered, m.Delivered, m.MissingFiles, m.PacingLag.Avg, m.PacingLag.Max)

	if err := r.Err(); err != nil {
		return err
	}
	if stopErr != nil {
		return stopErr
	}
	if waitErr != nil && waitErr != context.Canceled {
		return waitErr
	}
	return nil
}
