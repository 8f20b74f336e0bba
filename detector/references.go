package detector

import (
	"slices"
	"sync"
)

// PackageMap maps a dotted package name to the sorted, de-duplicated names of
// the classes that reference it. The unnamed package is "".
type PackageMap map[string][]string

// Packages returns the map's keys in sorted order.
func (m PackageMap) Packages() []string {
	pkgs := make([]string, 0, len(m))
	for p := range m {
		pkgs = append(pkgs, p)
	}
	slices.Sort(pkgs)
	return pkgs
}

// Classes returns every referencing class once, sorted.
func (m PackageMap) Classes() []string {
	seen := make(map[string]struct{})
	for _, classes := range m {
		for _, c := range classes {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// References accumulates package references for one scan. It is safe for
// concurrent use.
type References struct {
	mu       sync.Mutex
	packages map[string]map[string]struct{}
}

// NewReferences returns an empty aggregator.
func NewReferences() *References {
	return &References{packages: make(map[string]map[string]struct{})}
}

// Add records that class references pkg.
func (r *References) Add(pkg, class string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(pkg, class)
}

// AddClass records every package in pkgs as referenced by class.
func (r *References) AddClass(class string, pkgs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pkgs {
		r.add(p, class)
	}
}

func (r *References) add(pkg, class string) {
	classes, ok := r.packages[pkg]
	if !ok {
		classes = make(map[string]struct{})
		r.packages[pkg] = classes
	}
	classes[class] = struct{}{}
}

// Len returns the number of distinct packages recorded so far.
func (r *References) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.packages)
}

// Snapshot copies the current state into a PackageMap. Later additions do not
// affect the returned map.
func (r *References) Snapshot() PackageMap {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(PackageMap, len(r.packages))
	for pkg, classes := range r.packages {
		list := make([]string, 0, len(classes))
		for c := range classes {
			list = append(list, c)
		}
		slices.Sort(list)
		out[pkg] = list
	}
	return out
}
