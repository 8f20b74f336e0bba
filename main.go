package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"go-pkgdeps-neo4j/detector"
)

func main() {
	_ = godotenv.Load()

	cli := new(CLI)
	ctx := kong.Parse(
		cli,
		kong.Name("pkgdeps"),
		kong.Description("Report which packages the classes of a JVM artifact reference."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}

// Run scans the inputs, writes the report and optionally exports the graph.
func (c *CLI) Run() error {
	logger := c.Logger(os.Stderr)
	return c.run(context.Background(), logger)
}

func (c *CLI) run(ctx context.Context, logger *log.Logger) error {
	for _, p := range c.Paths {
		logger.Info("Input", "path", p)
	}

	d := detector.New(c.DetectorOptions(logger)...)
	m, err := d.ScanAll(ctx, c.Paths...)
	if err != nil {
		return err
	}
	logger.Info("Scanned", "packages", len(m), "classes", len(m.Classes()))

	w, closeOutput, err := c.openOutput()
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	if err := WriteReport(w, c.Format, m); err != nil {
		closeOutput()
		return fmt.Errorf("write report: %w", err)
	}
	if err := closeOutput(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	if !c.Neo4j {
		return nil
	}
	return c.export(ctx, m, logger)
}

// export loads m into Neo4j as JavaPackage and JavaClass nodes.
func (c *CLI) export(ctx context.Context, m detector.PackageMap, logger *log.Logger) error {
	collector := NewCollector()
	collector.CollectReferences(m)
	logger.Info("Collected",
		"packages", len(collector.Packages),
		"classes", len(collector.Classes),
		"references", len(collector.References))

	loader, err := NewNeo4jLoader(ctx, c.Neo4jURI, c.Neo4jUser, c.Neo4jPass, logger)
	if err != nil {
		return err
	}
	defer loader.Close()

	if c.Clean {
		if err := loader.CleanGraph(); err != nil {
			return fmt.Errorf("clean graph: %w", err)
		}
	}
	if err := loader.CreateIndexes(); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	if err := loader.Load(collector); err != nil {
		return err
	}

	logger.Info("Done! Graph loaded into Neo4j.")
	printQueries(os.Stderr)
	return nil
}

func printQueries(w io.Writer) {
	fmt.Fprint(w, `
Useful Cypher queries:
  // Packages referenced from outside the artifact, by number of referencing classes
  MATCH (p:JavaPackage {internal: false}) RETURN p.name, p.referrers ORDER BY p.referrers DESC

  // Classes referencing a given package
  MATCH (c:JavaClass)-[:REFERENCES]->(p:JavaPackage {name: 'javax.servlet'}) RETURN c.name

  // Package-to-package dependencies
  MATCH (a:JavaPackage)<-[:IN_PACKAGE]-(:JavaClass)-[:REFERENCES]->(b:JavaPackage)
  RETURN a.name, b.name, count(*) AS weight ORDER BY weight DESC LIMIT 20
`)
}
