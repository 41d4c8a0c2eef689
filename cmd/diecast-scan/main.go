package main

import (
	"bufio"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"diecastscan/internal/catalog"
	"diecastscan/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("diecast-scan")
	var (
		serverURL   = fs.StringLong("server", "http://localhost:8080", "Catalog service base URL")
		mode        = fs.StringLong("mode", "basic", "Scan mode: 'basic' or 'enhanced' (enables vision fallback)")
		captureCmd  = fs.StringLong("capture-cmd", "", "Capture command writing a still image; '{output}' is replaced with the frame path")
		spoolDir    = fs.StringLong("spool", "", "Spool directory to pick frames from instead of running a capture command")
		framesDir   = fs.StringLong("frames-dir", filepath.Join(os.TempDir(), "diecast-frames"), "Directory for transient frame files")
		tesseract   = fs.StringLong("tesseract", "tesseract", "Path to the tesseract binary")
		idleDelay   = fs.DurationLong("idle-delay", 1500*time.Millisecond, "Delay between scan cycles")
		pollDelay   = fs.DurationLong("poll-delay", 250*time.Millisecond, "Delay while a cycle is still in flight")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username for the catalog service (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("DIECAST"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	scanMode := scanning.Mode(*mode)
	if scanMode != scanning.ModeBasic && scanMode != scanning.ModeEnhanced {
		slog.Error("Invalid mode", "mode", *mode, "valid", "basic or enhanced")
		os.Exit(1)
	}

	var source scanning.Source
	var err error
	switch {
	case *spoolDir != "":
		source, err = scanning.NewSpoolSource(*spoolDir)
	case *captureCmd != "":
		source, err = scanning.NewCommandSource(strings.Fields(*captureCmd), *framesDir)
	default:
		slog.Error("Either --capture-cmd or --spool is required")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize frame source", "error", err)
		os.Exit(1)
	}

	basicAuth := catalog.BasicAuth{Username: *authUser, Password: *authPass}
	client := scanning.NewClient(*serverURL, basicAuth)

	var extractor scanning.Extractor
	if scanMode == scanning.ModeEnhanced {
		extractor = scanning.NewRemoteExtractor(*serverURL, *authUser, *authPass)
	}

	session := scanning.NewSession(scanning.SessionConfig{
		Source:    source,
		Engine:    scanning.NewTesseract(*tesseract),
		Resolver:  client,
		Extractor: extractor,
		Handler:   &terminalHandler{reader: bufio.NewReader(os.Stdin)},
		Mode:      scanMode,
		IdleDelay: *idleDelay,
		PollDelay: *pollDelay,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Scanning started", "server", *serverURL, "mode", scanMode)
	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Session error", "error", err)
		os.Exit(1)
	}
	slog.Info("Scanning stopped")
}

// terminalHandler presents scan outcomes on the terminal and prompts for
// variant choices
type terminalHandler struct {
	reader *bufio.Reader
}

func (h *terminalHandler) VariantAdded(car *catalog.Car, item *catalog.CollectionItem) {
	fmt.Printf("Added to collection: %s (%s): %s\n", car.Name, item.Variant.ToyNumber, describeVariant(item.Variant))
}

func (h *terminalHandler) ChooseVariant(car *catalog.Car) (uuid.UUID, bool) {
	fmt.Printf("Multiple variants of %s (%s):\n", car.Name, car.ToyNumber)
	for i, v := range car.Variants {
		fmt.Printf("  [%d] %s\n", i+1, describeVariant(v))
	}
	fmt.Print("Pick a variant number (enter to skip): ")

	line, err := h.reader.ReadString('\n')
	if err != nil {
		return uuid.Nil, false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return uuid.Nil, false
	}

	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(car.Variants) {
		fmt.Println("No such variant, skipping")
		return uuid.Nil, false
	}
	return car.Variants[n-1].ID, true
}

func (h *terminalHandler) NoVariants(code string) {
	fmt.Printf("No variants found for %s\n", code)
}

func (h *terminalHandler) NotFound(code string) {
	fmt.Printf("Code %s is not in the catalog\n", code)
}

func (h *terminalHandler) Failure(code string, err error) {
	fmt.Printf("Could not handle %s: %v\nCheck that the catalog service is reachable.\n", code, err)
}

func describeVariant(v catalog.Variant) string {
	parts := make([]string, 0, 4)
	if v.Desc != "" {
		parts = append(parts, v.Desc)
	}
	if v.SeriesName != "" {
		parts = append(parts, v.SeriesName)
	}
	if v.ReleaseYear != nil {
		parts = append(parts, strconv.Itoa(*v.ReleaseYear))
	}
	switch {
	case v.SuperTreasureHunt:
		parts = append(parts, "Super Treasure Hunt")
	case v.TreasureHunt:
		parts = append(parts, "Treasure Hunt")
	case v.IsChase:
		parts = append(parts, "Chase")
	}
	if len(parts) == 0 {
		return v.ID.String()
	}
	return strings.Join(parts, " · ")
}
