package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// batchSize caps the rows sent in a single UNWIND statement.
const batchSize = 5000

// Neo4jLoader loads package reference data into a Neo4j database
// using batch UNWIND queries.
type Neo4jLoader struct {
	driver neo4j.DriverWithContext
	ctx    context.Context
	logger *log.Logger
}

// NewNeo4jLoader connects to Neo4j and returns a ready-to-use loader.
func NewNeo4jLoader(ctx context.Context, uri, user, password string, logger *log.Logger) (*Neo4jLoader, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4j at %s unreachable: %w", uri, err)
	}
	return &Neo4jLoader{driver: driver, ctx: ctx, logger: logger}, nil
}

// Close releases the underlying Neo4j driver resources.
func (l *Neo4jLoader) Close() {
	l.driver.Close(l.ctx)
}

// runCypher runs a single Cypher statement with optional parameters.
func (l *Neo4jLoader) runCypher(cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(l.ctx, l.driver, cypher, params, neo4j.EagerResultTransformer)
	return err
}

// runBatches runs cypher once per chunk of rows, bound to $batch.
func (l *Neo4jLoader) runBatches(cypher string, rows []map[string]any) error {
	for _, chunk := range chunks(rows, batchSize) {
		if err := l.runCypher(cypher, map[string]any{"batch": chunk}); err != nil {
			return err
		}
	}
	return nil
}

// CleanGraph removes all previously loaded package reference nodes and relationships.
func (l *Neo4jLoader) CleanGraph() error {
	l.logger.Info("Cleaning existing package reference data...")
	queries := []string{
		"MATCH ()-[r:REFERENCES]->() DELETE r",
		"MATCH (:JavaClass)-[r:IN_PACKAGE]->(:JavaPackage) DELETE r",
		"MATCH (n:JavaClass) DETACH DELETE n",
		"MATCH (n:JavaPackage) DETACH DELETE n",
	}
	for _, q := range queries {
		if err := l.runCypher(q, nil); err != nil {
			return err
		}
	}
	return nil
}

// CreateIndexes ensures the required Neo4j indexes exist.
func (l *Neo4jLoader) CreateIndexes() error {
	l.logger.Info("Creating indexes...")
	indexes := []string{
		"CREATE INDEX java_pkg_name IF NOT EXISTS FOR (n:JavaPackage) ON (n.name)",
		"CREATE INDEX java_class_name IF NOT EXISTS FOR (n:JavaClass) ON (n.name)",
	}
	for _, q := range indexes {
		if err := l.runCypher(q, nil); err != nil {
			return err
		}
	}
	return nil
}

// LoadPackages upserts JavaPackage nodes.
func (l *Neo4jLoader) LoadPackages(pkgs map[string]*PackageNode) error {
	l.logger.Info("Loading packages", "count", len(pkgs))
	return l.runBatches(
		`UNWIND $batch AS row
		 MERGE (n:JavaPackage {name: row.name})
		 SET n.internal = row.internal, n.referrers = row.referrers`,
		packageRows(pkgs),
	)
}

// LoadClasses upserts JavaClass nodes and links them to their packages.
func (l *Neo4jLoader) LoadClasses(classes map[string]*ClassNode) error {
	l.logger.Info("Loading classes", "count", len(classes))
	return l.runBatches(
		`UNWIND $batch AS row
		 MERGE (n:JavaClass {name: row.name})
		 SET n.simple_name = row.simple, n.package = row.pkg, n.reference_count = row.refs
		 WITH n, row
		 MERGE (p:JavaPackage {name: row.pkg})
		 MERGE (n)-[:IN_PACKAGE]->(p)`,
		classRows(classes),
	)
}

// LoadReferences upserts REFERENCES relationships from JavaClass to JavaPackage nodes.
func (l *Neo4jLoader) LoadReferences(refs []ReferenceEdge) error {
	l.logger.Info("Loading reference edges", "count", len(refs))
	return l.runBatches(
		`UNWIND $batch AS row
		 MATCH (c:JavaClass {name: row.class})
		 MERGE (p:JavaPackage {name: row.pkg})
		 MERGE (c)-[:REFERENCES]->(p)`,
		referenceRows(refs),
	)
}

// Load writes everything a Collector holds, packages first.
func (l *Neo4jLoader) Load(c *Collector) error {
	if err := l.LoadPackages(c.Packages); err != nil {
		return fmt.Errorf("load packages: %w", err)
	}
	if err := l.LoadClasses(c.Classes); err != nil {
		return fmt.Errorf("load classes: %w", err)
	}
	if err := l.LoadReferences(c.References); err != nil {
		return fmt.Errorf("load references: %w", err)
	}
	return nil
}

func packageRows(pkgs map[string]*PackageNode) []map[string]any {
	rows := make([]map[string]any, 0, len(pkgs))
	for _, p := range pkgs {
		rows = append(rows, map[string]any{
			"name":      p.Name,
			"internal":  p.Internal,
			"referrers": p.Referrers,
		})
	}
	return rows
}

func classRows(classes map[string]*ClassNode) []map[string]any {
	rows := make([]map[string]any, 0, len(classes))
	for _, c := range classes {
		rows = append(rows, map[string]any{
			"name": c.Name, "simple": c.SimpleName,
			"pkg": c.Package, "refs": c.References,
		})
	}
	return rows
}

func referenceRows(refs []ReferenceEdge) []map[string]any {
	rows := make([]map[string]any, 0, len(refs))
	for _, r := range refs {
		rows = append(rows, map[string]any{
			"class": r.Class,
			"pkg":   r.Package,
		})
	}
	return rows
}

// chunks splits rows into slices of at most n elements.
func chunks(rows []map[string]any, n int) [][]map[string]any {
	var out [][]map[string]any
	for len(rows) > n {
		out = append(out, rows[:n:n])
		rows = rows[n:]
	}
	if len(rows) > 0 {
		out = append(out, rows)
	}
	return out
}
