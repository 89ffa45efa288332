package main

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/banshee-data/drowsiness.monitor/internal/drowsiness"
	"github.com/banshee-data/drowsiness.monitor/internal/features"
	"github.com/banshee-data/drowsiness.monitor/internal/monitoring"
)

// frameObserver receives every frame report. db.Recorder satisfies it.
type frameObserver interface {
	Observe(drowsiness.FrameReport)
}

// inputSource feeds the shared input queue. When a final source returns the
// remaining sources are cancelled and the queue is closed.
type inputSource struct {
	name  string
	run   func(ctx context.Context, out chan<- features.Input) error
	final bool
}

// startInputs runs every source against one bounded queue. The queue is
// closed only after all sources have returned, so end of input lets
// runFrames finish what is already queued. A source error ends input the
// same way a final source does.
func startInputs(ctx context.Context, size int, sources ...inputSource) <-chan features.Input {
	out := make(chan features.Input, size)
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src inputSource) {
			defer wg.Done()
			err := src.run(ctx, out)
			if err != nil && !errors.Is(err, context.Canceled) {
				monitoring.Logf("%s input error: %v", src.name, err)
				cancel()
			}
			if src.final {
				cancel()
			}
			monitoring.Logf("%s input terminated", src.name)
		}(src)
	}

	go func() {
		wg.Wait()
		cancel()
		close(out)
	}()
	return out
}

// runFrames drives the session from in until in is closed, a quit command
// arrives, or ctx is cancelled. On cancellation inputs already queued are
// still processed. It is the only goroutine that calls ProcessFrame.
func runFrames(ctx context.Context, session *drowsiness.Session, obs frameObserver, in <-chan features.Input) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case input, ok := <-in:
					if !ok || !handleInput(session, obs, input) {
						return ctx.Err()
					}
				default:
					return ctx.Err()
				}
			}

		case input, ok := <-in:
			if !ok || !handleInput(session, obs, input) {
				return nil
			}
		}
	}
}

// handleInput applies one input and reports whether the loop should go on.
func handleInput(session *drowsiness.Session, obs frameObserver, input features.Input) bool {
	switch input.Command {
	case features.CommandCalibrate:
		session.RequestCalibration()
		return true
	case features.CommandQuit:
		monitoring.Logf("quit command received")
		return false
	}

	rep := session.ProcessFrame(input.Frame)
	if rep.Transitioned() {
		monitoring.Logf("level %s -> %s (cause=%s elapsed=%v code=%c)",
			rep.PreviousLevel, rep.Level, rep.Signal.Cause(),
			rep.Elapsed.Round(time.Millisecond), rep.Level.Code())
	}
	if obs != nil {
		obs.Observe(rep)
	}
	return true
}

// openInput resolves the -input flag. "-" is stdin; an empty path disables
// the stream input.
func openInput(path string) (io.ReadCloser, error) {
	switch path {
	case "":
		return nil, nil
	case "-":
		return io.NopCloser(os.Stdin), nil
	default:
		return os.Open(path)
	}
}
