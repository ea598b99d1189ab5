//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"flag"
	"os"
	"strings"

	"github.com/himanishpuri/SnippetDNA/pkg/logger"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna"
)

var (
	listen         string
	dbPath         string
	configPath     string
	tempDir        string
	sampleRate     int
	allowedOrigins string
)

func init() {
	flag.StringVar(&listen, "listen", ":8080", "HTTP listen address")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("SNIPPET_DB_PATH", "snippetdna.sqlite3"), "Path to SQLite reference catalog")
	flag.StringVar(&configPath, "config", os.Getenv("SNIPPET_CONFIG"), "Optional YAML config file")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("SNIPPET_TEMP_DIR", os.TempDir()), "Temporary directory")
	flag.IntVar(&sampleRate, "rate", 16000, "Audio sample rate")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()
	log := logger.GetLogger().Named("server")

	fc, err := snippetdna.LoadConfigFile(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if level, ok := logger.ParseLevel(fc.LogLevel); ok {
		logger.SetLevel(level)
	}

	// Flags given on the command line win over the config file.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if fc.Listen != "" && !set["listen"] {
		listen = fc.Listen
	}
	opts := fc.Options()
	if set["db"] || fc.DBPath == "" {
		opts = append(opts, snippetdna.WithDBPath(dbPath))
	}
	if set["rate"] || fc.SampleRate == 0 {
		opts = append(opts, snippetdna.WithSampleRate(sampleRate))
	}
	opts = append(opts, snippetdna.WithLogger(logger.GetLogger().Named("snippetdna")))

	// Parse allowed origins
	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	lib, err := snippetdna.NewLibrary(opts...)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer lib.Close()

	cfg := lib.Config()
	config := &ServerConfig{
		Addr:           listen,
		DBPath:         cfg.DBPath,
		TempDir:        tempDir,
		SampleRate:     cfg.SampleRate,
		Threshold:      cfg.Threshold,
		AllowedOrigins: origins,
	}

	server := NewServer(lib, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
