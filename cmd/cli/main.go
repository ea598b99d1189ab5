//go:build !js && !wasm

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/SnippetDNA/pkg/logger"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/audio"
	"github.com/himanishpuri/SnippetDNA/pkg/utils"
)

// Global flags
var (
	dbPath     string
	configPath string
	tempDir    string
	sampleRate int
	threshold  float64
	verbose    bool
)

func init() {
	// Global flags that can be used with any command
	flag.StringVar(&dbPath, "db", getEnvOrDefault("SNIPPET_DB_PATH", "snippetdna.sqlite3"), "Path to the SQLite reference catalog")
	flag.StringVar(&configPath, "config", os.Getenv("SNIPPET_CONFIG"), "Optional YAML config file")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("SNIPPET_TEMP_DIR", os.TempDir()), "Directory for temporary audio conversion files")
	flag.IntVar(&sampleRate, "rate", 16000, "Audio sample rate for processing")
	flag.Float64Var(&threshold, "threshold", snippetdna.DefaultThreshold, "Detection threshold in [0, 1]")
	flag.BoolVar(&verbose, "v", false, "Enable debug logging")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// engineOptions layers the config file under any flags given explicitly.
func engineOptions() ([]snippetdna.Option, error) {
	fc, err := snippetdna.LoadConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if level, ok := logger.ParseLevel(fc.LogLevel); ok {
		logger.SetLevel(level)
	}
	if verbose {
		logger.SetLevel(logger.DEBUG)
	}

	opts := fc.Options()
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["db"] || fc.DBPath == "" {
		opts = append(opts, snippetdna.WithDBPath(dbPath))
	}
	if set["rate"] || fc.SampleRate == 0 {
		opts = append(opts, snippetdna.WithSampleRate(sampleRate))
	}
	if set["threshold"] {
		opts = append(opts, snippetdna.WithThreshold(threshold))
	}
	return opts, nil
}

// createLibrary opens the reference catalog with the configured options
func createLibrary() (*snippetdna.Library, snippetdna.Config, error) {
	opts, err := engineOptions()
	if err != nil {
		return nil, snippetdna.Config{}, err
	}
	opts = append(opts, snippetdna.WithLogger(logger.GetLogger().Named("snippetdna")))
	lib, err := snippetdna.NewLibrary(opts...)
	if err != nil {
		return nil, snippetdna.Config{}, err
	}
	return lib, lib.Config(), nil
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	log := logger.GetLogger()

	printBanner()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "add":
		handleAdd(args)
	case "detect":
		handleDetect(args)
	case "list":
		handleList()
	case "delete":
		handleDelete(args)
	case "export":
		handleExport(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
  ____        _                  _   ____  _   _    _
 / ___| _ __ (_)_ __  _ __   ___| |_|  _ \| \ | |  / \
 \___ \| '_ \| | '_ \| '_ \ / _ \ __| | | |  \| | / _ \
  ___) | | | | | |_) | |_) |  __/ |_| |_| | |\  |/ ___ \
 |____/|_| |_|_| .__/| .__/ \___|\__|____/|_| \_/_/   \_\
               |_|   |_|
           Streaming Snippet Detection CLI
`
	fmt.Println(banner)
}

func fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("❌ %s\n", msg)
	logger.GetLogger().Errorf("%s", msg)
	os.Exit(1)
}

// splitArgs separates the leading positional arguments from trailing flags.
func splitArgs(args []string) (positional, flags []string) {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return positional, args[i:]
		}
		positional = append(positional, arg)
	}
	return positional, nil
}

func handleAdd(args []string) {
	log := logger.GetLogger()

	positional, flagArgs := splitArgs(args)

	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	label := addCmd.String("label", "", "Label reported when the snippet is detected (default: file name)")
	addCmd.Parse(flagArgs)

	if len(positional) != 1 {
		fmt.Println("Usage: snippetdna add <audio_file> [-label <label>]")
		os.Exit(1)
	}
	audioPath := positional[0]
	if !utils.FileExists(audioPath) {
		fail("Audio file not found: %s", audioPath)
	}
	if *label == "" {
		*label = strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	}

	fmt.Println("\n🔧 Opening reference catalog...")
	lib, cfg, err := createLibrary()
	if err != nil {
		fail("Failed to open catalog: %v", err)
	}
	defer lib.Close()

	fmt.Println("🎵 Reading audio file...")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	samples, err := audio.LoadMono(ctx, audioPath, tempDir, cfg.SampleRate)
	if err != nil {
		fail("Failed to read audio: %v", err)
	}

	id, err := lib.AddSamples(*label, samples)
	if err != nil {
		fail("Failed to add reference: %v", err)
	}

	fmt.Println("\n✅ Successfully added reference!")
	fmt.Printf("   ID:       %s\n", id)
	fmt.Printf("   Label:    %s\n", *label)
	fmt.Printf("   Samples:  %s @ %d Hz\n", humanize.Comma(int64(len(samples))), cfg.SampleRate)
	log.Infof("Added reference %s (%q)", id, *label)
}

func handleDetect(args []string) {
	log := logger.GetLogger()

	positional, flagArgs := splitArgs(args)

	detectCmd := flag.NewFlagSet("detect", flag.ExitOnError)
	chunk := detectCmd.Int("chunk", 3200, "Bytes per write when streaming the file")
	detectCmd.Parse(flagArgs)

	if len(positional) != 1 || *chunk < 1 {
		fmt.Println("Usage: snippetdna detect <audio_file> [-chunk <bytes>]")
		os.Exit(1)
	}
	audioPath := positional[0]
	if !utils.FileExists(audioPath) {
		fail("Audio file not found: %s", audioPath)
	}

	lib, cfg, err := createLibrary()
	if err != nil {
		fail("Failed to open catalog: %v", err)
	}
	defer lib.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	samples, err := audio.LoadMono(ctx, audioPath, tempDir, cfg.SampleRate)
	if err != nil {
		fail("Failed to read audio: %v", err)
	}

	session, err := lib.NewSession()
	if err != nil {
		fail("Failed to start session: %v", err)
	}
	st := session.Stats()
	if st.Templates == 0 {
		fmt.Println("⚠️  Catalog has no references at this sample rate; nothing can match")
	}

	fmt.Printf("🔍 Streaming %s against %d reference(s)...\n\n", audioPath, st.Templates)

	done := make(chan int, 1)
	go func() {
		found := 0
		for {
			ev, err := session.Next(ctx)
			if errors.Is(err, snippetdna.ErrEndOfStream) {
				break
			}
			if err != nil {
				log.Errorf("Reading events: %v", err)
				break
			}
			found++
			at := time.Duration(ev.Position) * time.Second / time.Duration(cfg.SampleRate)
			fmt.Printf("%d. %q at %s (sample %d) | Score: %.3f\n", found, ev.Label, at, ev.Position, ev.Score)
		}
		done <- found
	}()

	data := audio.EncodeS16LE(samples)
	for off := 0; off < len(data); off += *chunk {
		end := min(off+*chunk, len(data))
		if err := session.Write(data[off:end]); err != nil {
			fail("Write failed: %v", err)
		}
	}
	if err := session.Close(); err != nil {
		fail("Detection failed: %v", err)
	}

	found := <-done
	st = session.Stats()
	if found == 0 {
		fmt.Println("❌ No snippets detected")
	} else {
		fmt.Printf("\n✅ Detected %d snippet(s)\n", found)
	}
	log.Infof("Analysed %s frames over %s samples", humanize.Comma(st.FramesAnalysed), humanize.Comma(st.SamplesWritten))
}

func handleList() {
	log := logger.GetLogger()

	lib, _, err := createLibrary()
	if err != nil {
		fail("Failed to open catalog: %v", err)
	}
	defer lib.Close()

	refs, err := lib.ListReferences()
	if err != nil {
		fail("Failed to list references: %v", err)
	}

	if len(refs) == 0 {
		fmt.Println("\n📭 No references in catalog")
		return
	}

	fmt.Printf("\n📚 Found %d reference(s):\n\n", len(refs))
	for i, ref := range refs {
		fmt.Printf("%d. %q (ID: %s)\n", i+1, ref.Label, ref.ID)
		fmt.Printf("   Duration: %d ms @ %d Hz | Size: %s | Added %s\n",
			ref.DurationMs(), ref.SampleRate,
			humanize.Bytes(uint64(ref.SampleCount*audio.BytesPerSample)),
			humanize.Time(ref.CreatedAt))
	}
	log.Debugf("Listed %d references", len(refs))
}

func handleDelete(args []string) {
	log := logger.GetLogger()

	if len(args) != 1 {
		fmt.Println("Usage: snippetdna delete <reference_id>")
		os.Exit(1)
	}
	id := args[0]

	lib, _, err := createLibrary()
	if err != nil {
		fail("Failed to open catalog: %v", err)
	}
	defer lib.Close()

	ref, err := lib.GetReference(id)
	if err != nil {
		fail("Reference not found (ID: %s): %v", id, err)
	}
	if err := lib.DeleteReference(id); err != nil {
		fail("Failed to delete reference: %v", err)
	}

	fmt.Printf("\n✅ Successfully deleted reference:\n")
	fmt.Printf("   ID:    %s\n", ref.ID)
	fmt.Printf("   Label: %s\n", ref.Label)
	log.Infof("Deleted reference %s (%q)", ref.ID, ref.Label)
}

func handleExport(args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: snippetdna export <reference_id> <output.wav>")
		os.Exit(1)
	}

	lib, _, err := createLibrary()
	if err != nil {
		fail("Failed to open catalog: %v", err)
	}
	defer lib.Close()

	ref, err := lib.GetReference(args[0])
	if err != nil {
		fail("Reference not found (ID: %s): %v", args[0], err)
	}
	if err := audio.WriteWav(args[1], audio.DecodeS16LE(ref.PCM), ref.SampleRate); err != nil {
		fail("Failed to write %s: %v", args[1], err)
	}
	fmt.Printf("✅ Wrote %q to %s\n", ref.Label, args[1])
}

func printUsage() {
	fmt.Println("SnippetDNA - Streaming Snippet Detection CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  -db <path>         Path to SQLite catalog (env: SNIPPET_DB_PATH, default: snippetdna.sqlite3)")
	fmt.Println("  -config <path>     YAML config file (env: SNIPPET_CONFIG)")
	fmt.Println("  -temp <dir>        Temporary directory for audio conversion (env: SNIPPET_TEMP_DIR)")
	fmt.Println("  -rate <hz>         Audio sample rate (default: 16000)")
	fmt.Println("  -threshold <0..1>  Detection threshold (default: 0.85)")
	fmt.Println("  -v                 Debug logging")
	fmt.Println("\nUsage:")
	fmt.Println("  snippetdna [global-options] add <audio_file> [-label <label>]")
	fmt.Println("  snippetdna [global-options] detect <audio_file> [-chunk <bytes>]")
	fmt.Println("  snippetdna [global-options] list")
	fmt.Println("  snippetdna [global-options] delete <reference_id>")
	fmt.Println("  snippetdna [global-options] export <reference_id> <output.wav>")
	fmt.Println("\nExamples:")
	fmt.Println("  # Register a jingle")
	fmt.Println("  snippetdna -db refs.sqlite3 add jingle.wav -label jingle")
	fmt.Println()
	fmt.Println("  # Scan a recording in 100 ms chunks")
	fmt.Println("  snippetdna -db refs.sqlite3 detect broadcast.mp3 -chunk 3200")
}
