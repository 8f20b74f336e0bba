package main

import (
	"cmp"
	"slices"
	"strings"

	"go-pkgdeps-neo4j/detector"
	"go-pkgdeps-neo4j/typeref"
)

// Collector turns a package reference map into graph nodes and edges.
type Collector struct {
	Packages   map[string]*PackageNode
	Classes    map[string]*ClassNode
	References []ReferenceEdge
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		Packages: make(map[string]*PackageNode),
		Classes:  make(map[string]*ClassNode),
	}
}

// CollectReferences adds every (package, class) pair of m. A class's own
// package becomes its IN_PACKAGE link; every other package a REFERENCES edge.
func (c *Collector) CollectReferences(m detector.PackageMap) {
	for _, pkg := range m.Packages() {
		node := c.pkg(pkg)
		for _, class := range m[pkg] {
			node.Referrers++

			cls := c.class(class)
			if cls.Package == pkg {
				node.Internal = true
				continue
			}
			cls.References++
			c.References = append(c.References, ReferenceEdge{Class: class, Package: pkg})
		}
	}
	slices.SortFunc(c.References, func(a, b ReferenceEdge) int {
		return cmp.Or(strings.Compare(a.Class, b.Class), strings.Compare(a.Package, b.Package))
	})
}

func (c *Collector) pkg(name string) *PackageNode {
	p, ok := c.Packages[name]
	if !ok {
		p = &PackageNode{Name: name}
		c.Packages[name] = p
	}
	return p
}

func (c *Collector) class(name string) *ClassNode {
	cls, ok := c.Classes[name]
	if !ok {
		pkg := typeref.PackageOf(name)
		cls = &ClassNode{
			Name:       name,
			SimpleName: strings.TrimPrefix(strings.TrimPrefix(name, pkg), "."),
			Package:    pkg,
		}
		c.Classes[name] = cls
	}
	return cls
}
