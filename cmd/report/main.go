// Command report summarises a stored monitoring session and plots it.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/drowsiness.monitor/internal/db"
	"github.com/banshee-data/drowsiness.monitor/internal/drowsiness"
	"github.com/banshee-data/drowsiness.monitor/internal/report"
	"github.com/banshee-data/drowsiness.monitor/internal/security"
	"github.com/banshee-data/drowsiness.monitor/internal/version"
)

var (
	dbPath      = flag.String("db", "monitor.db", "SQLite database written by monitor")
	sessionID   = flag.String("session", "", "Session ID (defaults to the most recent session)")
	outPath     = flag.String("out", "", "Write a PNG plot of the session to this path")
	asJSON      = flag.Bool("json", false, "Print the summary as JSON")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("report"))
		return
	}

	database, err := db.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := run(database, *sessionID, *outPath, *asJSON, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run resolves the session, prints its summary and optionally plots it.
func run(database *db.DB, id, out string, jsonOut bool, w io.Writer) error {
	if out != "" {
		if err := security.ValidateOutputPath(out, ".png"); err != nil {
			return fmt.Errorf("invalid -out: %w", err)
		}
	}
	sess, err := resolveSession(database, id)
	if err != nil {
		return err
	}
	samples, err := database.Samples(sess.ID, 0)
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}
	transitions, err := database.Transitions(sess.ID, 0)
	if err != nil {
		return fmt.Errorf("load transitions: %w", err)
	}

	summary, err := report.Summarise(samples, transitions)
	if err != nil {
		return fmt.Errorf("session %s: %w", sess.ID, err)
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		printSummary(w, sess, summary)
	}

	if out != "" {
		if err := report.PlotSession(samples, out); err != nil {
			return err
		}
		if !jsonOut {
			fmt.Fprintf(w, "\nplot written to %s\n", out)
		}
	}
	return nil
}

func resolveSession(database *db.DB, id string) (db.SessionRecord, error) {
	if id != "" {
		return database.Session(id)
	}
	sessions, err := database.Sessions(1)
	if err != nil {
		return db.SessionRecord{}, err
	}
	if len(sessions) == 0 {
		return db.SessionRecord{}, errors.New("no sessions recorded")
	}
	return sessions[0], nil
}

func printSummary(w io.Writer, sess db.SessionRecord, s report.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "session\t%s\n", sess.ID)
	fmt.Fprintf(tw, "started\t%s\n", sess.StartedAt.Local().Format(time.RFC3339))
	if sess.Notes != "" {
		fmt.Fprintf(tw, "notes\t%s\n", sess.Notes)
	}
	fmt.Fprintf(tw, "duration\t%v\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(tw, "samples\t%d (face %.0f%%, anomalous %.0f%%)\n", s.Samples, 100*s.FaceFraction, 100*s.AnomalousFraction)
	fmt.Fprintf(tw, "EAR\tmean %.3f sd %.3f median %.3f [%.3f, %.3f]\n", s.EAR.Mean, s.EAR.StdDev, s.EAR.Median, s.EAR.Min, s.EAR.Max)
	fmt.Fprintf(tw, "droop deviation\tmean %.3f sd %.3f median %.3f [%.3f, %.3f]\n", s.Deviation.Mean, s.Deviation.StdDev, s.Deviation.Median, s.Deviation.Min, s.Deviation.Max)
	fmt.Fprintf(tw, "peak level\t%s (%s)\n", s.PeakLevel, s.PeakLevel.Label())
	fmt.Fprintf(tw, "transitions\t%d (alerts %d, longest episode %v)\n", s.Transitions, s.Alerts, s.LongestEpisode)
	for _, l := range drowsiness.Levels() {
		if d, ok := s.TimeInLevel[l]; ok {
			fmt.Fprintf(tw, "time %s\t%v\n", l, d.Round(time.Millisecond))
		}
	}
	tw.Flush()
}
