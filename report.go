package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"go-pkgdeps-neo4j/detector"
)

// Report formats accepted by --format.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
)

// WriteReport writes m to w in the given format. Packages and classes come
// out sorted in every format.
func WriteReport(w io.Writer, format string, m detector.PackageMap) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(nonNil(m))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(nonNil(m)); err != nil {
			return err
		}
		return enc.Close()
	case FormatText:
		bw := bufio.NewWriter(w)
		for _, pkg := range m.Packages() {
			for _, class := range m[pkg] {
				fmt.Fprintf(bw, "%s\t%s\n", pkg, class)
			}
		}
		return bw.Flush()
	}
	return fmt.Errorf("unknown report format %q", format)
}

// nonNil keeps empty results rendered as {} rather than null.
func nonNil(m detector.PackageMap) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}
