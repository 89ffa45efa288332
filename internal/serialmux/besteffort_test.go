package serialmux

import (
	"errors"
	"fmt"
	"testing"

	"github.com/banshee-data/drowsiness.monitor/internal/monitoring"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	original := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.Logf = original })
	return &lines
}

func TestBestEffort_SwallowsErrorsAndLogsOnce(t *testing.T) {
	logs := captureLogs(t)
	port := NewTestableSerialPort()
	tx := NewBestEffort(NewSerialMux(port))

	if err := tx.Send('A'); err != nil {
		t.Fatalf("Send = %v", err)
	}

	port.SetWriteError(errors.New("input/output error"))
	for i := 0; i < 50; i++ {
		if err := tx.Send('B'); err != nil {
			t.Fatalf("Send during outage = %v, want nil", err)
		}
	}
	if len(*logs) != 1 {
		t.Fatalf("expected one outage log line, got %d: %v", len(*logs), *logs)
	}

	port.SetWriteError(nil)
	if err := tx.Send('C'); err != nil {
		t.Fatal(err)
	}
	if len(*logs) != 2 || (*logs)[1] != "actuator link recovered" {
		t.Errorf("expected a recovery line, got %v", *logs)
	}

	stats := tx.Stats()
	if stats.Sent != 2 || stats.Failed != 50 {
		t.Errorf("stats = %+v, want 2 sent and 50 failed", stats)
	}
	if stats.LastError != "input/output error" {
		t.Errorf("LastError = %q", stats.LastError)
	}
	if got := string(port.GetWrittenData()); got != "AC" {
		t.Errorf("written = %q, want %q", got, "AC")
	}
}

func TestBestEffort_NilTransmitter(t *testing.T) {
	tx := NewBestEffort(nil)
	if err := tx.Send('D'); err != nil {
		t.Errorf("Send = %v", err)
	}
	if err := tx.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
	if tx.Stats().Sent != 1 {
		t.Errorf("Sent = %d, want 1", tx.Stats().Sent)
	}
}
