package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/drowsiness.monitor/internal/api"
	"github.com/banshee-data/drowsiness.monitor/internal/config"
	"github.com/banshee-data/drowsiness.monitor/internal/db"
	"github.com/banshee-data/drowsiness.monitor/internal/drowsiness"
	"github.com/banshee-data/drowsiness.monitor/internal/features"
	"github.com/banshee-data/drowsiness.monitor/internal/monitoring"
	"github.com/banshee-data/drowsiness.monitor/internal/serialmux"
	"github.com/banshee-data/drowsiness.monitor/internal/timeutil"
	"github.com/banshee-data/drowsiness.monitor/internal/version"
)

var (
	configPath     = flag.String("config", "", "Path to a JSON tuning file (defaults built in when empty)")
	port           = flag.String("port", "", "Actuator serial device (overrides serial_port in the config)")
	disableSerial  = flag.Bool("disable-serial", false, "Run without an actuator; severity codes are discarded")
	listen         = flag.String("listen", ":8080", "HTTP listen address (empty disables the API)")
	dbPath         = flag.String("db", "monitor.db", "SQLite database path (empty disables storage)")
	input          = flag.String("input", "-", "Feature input: '-' for stdin, a file path, or empty for none")
	udpListen      = flag.String("udp-listen", "", "UDP address for feature datagrams, e.g. :7400 (empty disables)")
	udpRcvBuf      = flag.Int("udp-rcvbuf", 1<<20, "UDP receive buffer size in bytes")
	replayRealtime = flag.Bool("replay-realtime", false, "Pace file input by record timestamps")
	logFile        = flag.String("log-file", "", "Also write logs to this rotating file")
	notes          = flag.String("notes", "", "Free-text notes stored with the session")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

// inputQueue bounds frames waiting for the session. The stream reader
// blocks when it is full; the UDP listener drops.
const inputQueue = 64

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: monitor [flags]\n       monitor migrate <command>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("monitor"))
		return
	}

	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		if *dbPath == "" {
			log.Fatal("migrate requires -db")
		}
		if err := db.RunMigrateCommand(flag.Args()[1:], *dbPath, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(2)
	}

	if *logFile != "" {
		logger, closer := monitoring.NewFileLogger(*logFile, monitoring.DefaultFileLogOptions())
		defer closer.Close()
		log.SetOutput(logger.Writer())
		log.SetFlags(logger.Flags())
		monitoring.SetLogger(logger.Printf)
	}
	log.Print(version.String("monitor"))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *port != "" {
		cfg.SerialPort = port
	}

	actuator := openActuator(cfg, *disableSerial)
	tx := serialmux.NewBestEffort(actuator)
	defer tx.Close()

	session := drowsiness.NewSession(cfg.SessionConfig(), tx)

	var database *db.DB
	var recorder *db.Recorder
	sessionID := ""
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()

		cfgJSON, err := json.Marshal(cfg.Effective())
		if err != nil {
			log.Fatalf("failed to encode session config: %v", err)
		}
		sessionID, err = database.StartSession(time.Now(), cfgJSON, *notes)
		if err != nil {
			log.Fatalf("failed to start session: %v", err)
		}
		recorder = db.NewRecorder(database, sessionID, cfg.GetSampleEvery(), cfg.GetRecorderBuffer())
		log.Printf("recording session %s to %s", sessionID, *dbPath)
	}

	src, err := openInput(*input)
	if err != nil {
		log.Fatalf("failed to open input: %v", err)
	}
	if src == nil && *udpListen == "" {
		log.Fatal("no feature input: set -input or -udp-listen")
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// microcontroller output is only of interest on the admin tail page
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := actuator.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("actuator monitor stopped: %v", err)
		}
		log.Print("actuator monitor routine terminated")
	}()

	// the recorder outlives the frame loop so reports from a final drain are stored
	recCtx, stopRecorder := context.WithCancel(context.Background())
	defer stopRecorder()
	if recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recorder.Run(recCtx); err != nil {
				log.Printf("recorder stopped: %v", err)
			}
			written, dropped := recorder.Stats()
			log.Printf("recorder routine terminated: written=%d dropped=%d", written, dropped)
		}()
	}

	var sources []inputSource
	if src != nil {
		var pacer *features.Pacer
		if *replayRealtime {
			pacer = features.NewPacer(timeutil.RealClock{}, features.DefaultMaxGap)
		}
		reader := features.NewReader(src, timeutil.RealClock{}, pacer)
		// end of the stream ends the session, as quitting does
		sources = append(sources, inputSource{
			name:  "stream",
			final: true,
			run: func(ctx context.Context, out chan<- features.Input) error {
				defer src.Close()
				err := reader.Run(ctx, out)
				decoded, skipped := reader.Counts()
				log.Printf("feature input ended: decoded=%d skipped=%d", decoded, skipped)
				return err
			},
		})
	}
	if *udpListen != "" {
		listener := features.NewUDPListener(features.UDPListenerConfig{
			Address: *udpListen,
			RcvBuf:  *udpRcvBuf,
		})
		sources = append(sources, inputSource{name: "udp", run: listener.Start})
	}
	inputs := startInputs(ctx, inputQueue, sources...)

	wg.Add(1)
	go func() {
		defer wg.Done()
		var obs frameObserver
		if recorder != nil {
			obs = recorder
		}
		if err := runFrames(ctx, session, obs, inputs); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("frame loop error: %v", err)
		}
		log.Print("frame loop terminated")
		stopRecorder()
		stop()
	}()

	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()

			apiServer := api.NewServer(session, database, sessionID)
			apiServer.SetDeliveryReporter(tx)
			mux := apiServer.ServeMux()
			actuator.AttachAdminRoutes(mux)
			if database != nil {
				database.AttachAdminRoutes(mux)
			}

			server := &http.Server{
				Addr:    *listen,
				Handler: api.LoggingMiddleware(mux),
			}

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("failed to start server: %v", err)
				}
			}()

			<-ctx.Done()
			log.Println("shutting down HTTP server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
				if err := server.Close(); err != nil {
					log.Printf("HTTP server force close error: %v", err)
				}
			}
			log.Printf("HTTP server routine stopped")
		}()
	}

	wg.Wait()

	if database != nil {
		if err := database.EndSession(sessionID, time.Now()); err != nil {
			log.Printf("failed to end session: %v", err)
		}
	}
	snap := session.Snapshot()
	log.Printf("final level %s after %d frames (codes sent=%d delivered=%d)", snap.Level, snap.Seq, snap.Sent, snap.Delivered)
	log.Printf("Graceful shutdown complete")
}

// loadConfig reads the tuning file, or returns built-in defaults for an
// empty path.
func loadConfig(path string) (*config.MonitorConfig, error) {
	if path == "" {
		return config.EmptyConfig(), nil
	}
	return config.LoadConfig(path)
}

// openActuator opens the configured serial device. When disabled, or when the
// device cannot be opened, it falls back to a no-op actuator so monitoring
// continues in simulation mode.
func openActuator(cfg *config.MonitorConfig, disabled bool) serialmux.SerialMuxInterface {
	if disabled {
		log.Print("serial disabled: running in simulation mode")
		return serialmux.NewDisabledSerialMux()
	}
	path := cfg.GetSerialPort()
	opts := cfg.GetSerialOptions()
	mux, err := serialmux.NewRealSerialMux(path, opts)
	if err != nil {
		log.Printf("actuator unavailable at %s (%s): %v; running in simulation mode", path, opts, err)
		return serialmux.NewDisabledSerialMux()
	}
	log.Printf("actuator connected at %s (%s)", path, opts)
	return mux
}
