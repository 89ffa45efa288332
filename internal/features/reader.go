package features

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/banshee-data/drowsiness.monitor/internal/monitoring"
	"github.com/banshee-data/drowsiness.monitor/internal/timeutil"
)

// maxLineBytes bounds a single record. A full 478-point mesh is about 30KB.
const maxLineBytes = 256 * 1024

// Reader decodes newline-delimited JSON records from a stream such as stdin
// or a recorded session file.
type Reader struct {
	src   io.Reader
	clock timeutil.Clock
	pacer *Pacer

	decoded int
	skipped int
}

// NewReader returns a Reader over src. pacer may be nil for as-fast-as-
// possible delivery.
func NewReader(src io.Reader, clock timeutil.Clock, pacer *Pacer) *Reader {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Reader{src: src, clock: clock, pacer: pacer}
}

// Run sends every decoded input to out until the stream ends, a quit
// command arrives, or ctx is cancelled. Malformed lines are logged and
// skipped. Run does not close out.
func (r *Reader) Run(ctx context.Context, out chan<- Input) error {
	scan := bufio.NewScanner(r.src)
	scan.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scan.Scan() {
		lineNo++
		text := strings.TrimSpace(scan.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		in, err := Decode([]byte(text), r.clock)
		if err != nil {
			r.skipped++
			monitoring.Logf("features: skipping line %d: %v", lineNo, err)
			continue
		}
		r.decoded++

		if in.Command == CommandQuit {
			return nil
		}
		if !in.IsCommand() && r.pacer != nil {
			if err := r.pacer.Wait(ctx, in.Frame.Sample.Timestamp); err != nil {
				return err
			}
		}

		select {
		case out <- in:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scan.Err()
}

// Counts returns how many lines were decoded and skipped so far. Call after
// Run returns.
func (r *Reader) Counts() (decoded, skipped int) {
	return r.decoded, r.skipped
}
