package main

import (
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"go-pkgdeps-neo4j/detector"
)

// CLI holds the command line. Every flag falls back to an environment
// variable, which may also come from a .env file in the working directory.
type CLI struct {
	Paths []string `arg:"" name:"path" help:"Class directories, .jar or .war archives to scan." type:"path"`

	Format      string `short:"f" help:"Report format (${enum})." enum:"json,yaml,text" default:"json" env:"PKGDEPS_FORMAT"`
	Output      string `short:"o" help:"Write the report to this file instead of stdout." env:"PKGDEPS_OUTPUT"`
	Jobs        int    `short:"j" help:"Inputs scanned in parallel." default:"4" env:"PKGDEPS_JOBS"`
	TempDir     string `help:"Directory for nested archives too large for memory." type:"path" env:"PKGDEPS_TEMP_DIR"`
	MaxInMemory int64  `help:"Largest nested archive, in bytes, read into memory." default:"33554432" env:"PKGDEPS_MAX_IN_MEMORY"`
	CacheSize   int    `help:"Class results cached by content digest; 0 disables the cache." default:"4096" env:"PKGDEPS_CACHE_SIZE"`
	Verbose     bool   `short:"v" help:"Log every archive and cache hit." env:"PKGDEPS_VERBOSE"`

	Neo4j     bool   `name:"neo4j" help:"Export the result to Neo4j." env:"PKGDEPS_NEO4J"`
	Neo4jURI  string `name:"neo4j-uri" help:"Neo4j bolt URI." default:"bolt://localhost:7687" env:"NEO4J_URI"`
	Neo4jUser string `name:"neo4j-user" help:"Neo4j username." default:"neo4j" env:"NEO4J_USER"`
	Neo4jPass string `name:"neo4j-pass" help:"Neo4j password." env:"NEO4J_PASS"`
	Clean     bool   `help:"Remove previously exported package data before loading." env:"PKGDEPS_CLEAN"`
}

// Validate is called by kong after parsing.
func (c *CLI) Validate() error {
	if c.Neo4j && c.Neo4jPass == "" {
		return errors.New("--neo4j-pass (or NEO4J_PASS) is required with --neo4j")
	}
	if c.Jobs < 1 {
		return errors.New("--jobs must be at least 1")
	}
	if c.CacheSize < 0 {
		return errors.New("--cache-size must not be negative")
	}
	return nil
}

// Logger builds the logger writing to w, at debug level when verbose.
func (c *CLI) Logger(w io.Writer) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{Prefix: "pkgdeps"})
	if c.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// DetectorOptions translates the flags into detector options.
func (c *CLI) DetectorOptions(logger *log.Logger) []detector.Option {
	opts := []detector.Option{
		detector.WithLogger(logger),
		detector.WithJobs(c.Jobs),
		detector.WithMaxInMemory(c.MaxInMemory),
		detector.WithCacheSize(c.CacheSize),
	}
	if c.TempDir != "" {
		opts = append(opts, detector.WithTempDir(c.TempDir))
	}
	return opts
}

// openOutput returns the report destination and a function closing it.
func (c *CLI) openOutput() (io.Writer, func() error, error) {
	if c.Output == "" || c.Output == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(c.Output)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
