package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/airquality.report/internal/api"
	"github.com/banshee-data/airquality.report/internal/config"
	"github.com/banshee-data/airquality.report/internal/db"
	"github.com/banshee-data/airquality.report/internal/eventlog"
	"github.com/banshee-data/airquality.report/internal/monitoring"
	"github.com/banshee-data/airquality.report/internal/pms"
	"github.com/banshee-data/airquality.report/internal/serialport"
	"github.com/banshee-data/airquality.report/internal/version"
)

var (
	devMode      = flag.Bool("dev", false, "Run in dev mode (replay a fixture stream, auto-apply migrations)")
	fixture      = flag.String("fixture", "fixtures/pms5003.bin", "Sensor stream file to replay in dev mode")
	listen       = flag.String("listen", ":8080", "HTTP listen address")
	portName     = flag.String("port", "/dev/ttyUSB0", "Serial port the sensor is attached to (ignored in dev mode)")
	baudRate     = flag.Int("baud", 0, "Serial baud rate (0 uses the config value, default 9600)")
	dbFile       = flag.String("db", "pms_data.db", "Path to the SQLite archive")
	configFile   = flag.String("config", "", "Path to a capture tuning config (JSON)")
	segmentBytes = flag.Int("segment-bytes", 0, "Event log segment capacity in bytes (0 uses the config value)")
	showVersion  = flag.Bool("version", false, "Print version information and exit")
)

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Subcommands run to completion before any daemon setup
	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "migrate":
			db.RunMigrateCommand(flag.Args()[1:], *dbFile)
			return
		case "help":
			flag.Usage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", flag.Arg(0))
			os.Exit(1)
		}
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !*devMode && *portName == "" {
		log.Fatal("Serial port is required")
	}

	cfg := config.EmptyCaptureConfig()
	if *configFile != "" {
		loaded, err := config.LoadCaptureConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load capture config: %v", err)
		}
		cfg = loaded
		log.Printf("Loaded capture config from %s", *configFile)
	}

	// Flags win over the config file, which wins over defaults
	baud := *baudRate
	if baud <= 0 {
		baud = cfg.GetBaudRate()
	}
	segBytes := *segmentBytes
	if segBytes <= 0 {
		segBytes = cfg.GetSegmentBytes()
	}

	log.Print(version.String())

	// In dev mode outstanding migrations are applied on open; in
	// production a schema mismatch refuses to start so the operator runs
	// 'pms migrate up' deliberately.
	database, err := db.OpenDBWithMigrationCheck(*dbFile, *devMode)
	if err != nil {
		log.Fatalf("Failed to open archive database: %v", err)
	}
	defer database.Close()

	stats := &monitoring.PipelineStats{}
	eventLog, err := eventlog.New(eventlog.Options{
		SegmentBytes: segBytes,
		RetainSealed: cfg.GetRetainSealed(),
		Stats:        stats,
	})
	if err != nil {
		log.Fatalf("Failed to create event log: %v", err)
	}

	// Open the sensor stream: real hardware, or a recorded fixture that
	// keeps the daemon alive after replay so the API stays inspectable
	var port serialport.SerialPorter
	sessionPort := *portName
	if *devMode {
		data, err := os.ReadFile(*fixture)
		if err != nil {
			log.Fatalf("Failed to read fixture stream (generate one with gen-pmsstream): %v", err)
		}
		port = &serialport.MockSerialPort{ReadData: data, BlockOnEmpty: true}
		sessionPort = "fixture:" + *fixture
		log.Printf("Dev mode: replaying %d bytes from %s", len(data), *fixture)
	} else {
		port, err = serialport.Open(*portName, baud, cfg.GetReadTimeout())
		if err != nil {
			log.Fatalf("Failed to open serial port: %v", err)
		}
		log.Printf("Opened %s at %d baud", *portName, baud)
	}
	defer port.Close()

	sessionID := uuid.New().String()
	if err := database.StartSession(sessionID, sessionPort, baud); err != nil {
		log.Fatalf("Failed to record capture session: %v", err)
	}
	log.Printf("Capture session %s started", sessionID)

	worker := pms.NewWorker(pms.NewFrameReader(port, stats), eventLog, nil, stats)
	archiver := db.NewArchiver(database, eventLog, sessionID, cfg.GetArchiveInterval(), nil, stats)

	// Create a wait group for the capture, archiver, and HTTP routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The archiver outlives the capture worker so the final sealed
	// segment is always archived: its context is cancelled only after
	// the worker has returned and sealed.
	archiverCtx, stopArchiver := context.WithCancel(context.Background())

	wg.Add(1)
	go func() {
		defer wg.Done()
		archiver.Run(archiverCtx)
		log.Print("archiver routine terminated")
	}()

	// A blocked serial read does not notice context cancellation, so the
	// port is closed to unblock it
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		port.Close()
	}()

	// Capture routine: frames in, encoded records out
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stopArchiver()
		if err := worker.Run(ctx); err != nil {
			log.Printf("capture worker error: %v", err)
			stop()
		}
		if eventLog.SealCurrent() {
			log.Print("sealed final segment")
		}
		log.Print("capture routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(database, eventLog, stats, sessionID).ServeMux()
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Fatalf("Failed to attach admin routes: %v", err)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("Starting HTTP server on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a shorter timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()

	if err := database.EndSession(sessionID); err != nil {
		log.Printf("Failed to mark capture session ended: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
