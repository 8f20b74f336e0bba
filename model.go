package main

// PackageNode represents a Java package referenced by the scanned artifact.
type PackageNode struct {
	Name      string
	Internal  bool // at least one scanned class lives in it
	Referrers int  // number of classes referencing it
}

// ClassNode represents a scanned Java class.
type ClassNode struct {
	Name       string // fully-qualified, dotted
	SimpleName string
	Package    string
	References int // number of packages referenced besides its own
}

// ReferenceEdge represents a class referencing a package other than its own.
type ReferenceEdge struct {
	Class   string
	Package string
}
