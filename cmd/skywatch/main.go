package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/skywatch/internal/alert"
	"github.com/abelbrown/skywatch/internal/anomaly"
	"github.com/abelbrown/skywatch/internal/api"
	"github.com/abelbrown/skywatch/internal/audio"
	"github.com/abelbrown/skywatch/internal/config"
	"github.com/abelbrown/skywatch/internal/feed"
	"github.com/abelbrown/skywatch/internal/logging"
	"github.com/abelbrown/skywatch/internal/store"
	"github.com/abelbrown/skywatch/internal/ui"
)

func main() {
	review := flag.Bool("review", false, "print the archived session log and exit")
	reviewLimit := flag.Int("review-limit", 50, "maximum records printed by -review")
	flag.Parse()

	cfg, _ := config.Load()

	if err := logging.Init(); err != nil {
		// Diagnostics only; the console still works without a log file.
		log.Printf("Warning: logging unavailable: %v", err)
	}
	defer logging.Close()

	// Backend client
	client := api.NewClient(cfg.Backend.URL, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second)

	// Session archive (optional: SKYWATCH_ARCHIVE=- disables it)
	var archive *store.Archive
	if cfg.ArchivePath != "-" {
		path := cfg.ArchivePath
		if path == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				log.Fatalf("Failed to get home directory: %v", err)
			}
			dataDir := filepath.Join(homeDir, ".skywatch")
			if err := os.MkdirAll(dataDir, 0755); err != nil {
				log.Fatalf("Failed to create data directory: %v", err)
			}
			path = filepath.Join(dataDir, "skywatch.db")
		}
		a, err := store.Open(path)
		if err != nil {
			// Continue without persistence
			logging.Warn("archive unavailable", "path", path, "error", err)
		} else {
			archive = a
			defer a.Close()
		}
	}

	if *review {
		if archive == nil {
			fmt.Fprintln(os.Stderr, "no session archive available")
			os.Exit(1)
		}
		if err := printReview(archive, *reviewLimit); err != nil {
			fmt.Fprintf(os.Stderr, "review failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var archiver feed.Archiver
	if archive != nil {
		archiver = archive
	}

	// Audible alert, throttled
	var sink audio.Sink = audio.NewBellSink()
	if !cfg.Alerts.Sound {
		sink = audio.NopSink{}
	}
	throttle := alert.NewThrottle(sink, time.Duration(cfg.Alerts.CooldownSeconds)*time.Second)

	// Feed controller
	controller := feed.NewController(client, throttle, archiver)
	controller.SetPollInterval(time.Duration(cfg.UI.PollSeconds) * time.Second)

	app := ui.NewApp(ui.AppConfig{
		Controller: controller,
		StartMode:  feed.ModeRealtime,
		MinScore:   cfg.UI.MinScore,
		ShowNormal: cfg.UI.ShowNormalStart,
		OnSelect: func(rec anomaly.Record) {
			logging.Info("record selected", "flight", rec.FlightID, "timestamp", rec.Timestamp)
		},
	})

	program := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// printReview writes the archived session log to stdout, newest first.
func printReview(archive *store.Archive, limit int) error {
	records, err := archive.Review(limit)
	if err != nil {
		return err
	}
	for _, rec := range records {
		marker := " "
		switch rec.UserLabel {
		case anomaly.LabelAnomaly:
			marker = "!"
		case anomaly.LabelNormal:
			marker = "·"
		}
		callsign := rec.Callsign
		if callsign == "" {
			callsign = "-"
		}
		fmt.Printf("%s  %-10s %-8s %3d %s\n",
			time.Unix(rec.Timestamp, 0).Format("2006-01-02 15:04:05"),
			rec.FlightID, callsign, rec.Confidence(), marker)
	}
	return nil
}
