package detector

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"
)

// DefaultCacheSize is the number of class results kept by a Detector unless
// WithCacheSize says otherwise.
const DefaultCacheSize = 4096

type digest [32]byte

func digestOf(b []byte) digest {
	return blake3.Sum256(b)
}

// classCache remembers the contribution of class files by content, so that a
// class duplicated across nested archives is parsed once. A nil cache is
// valid and never hits.
type classCache struct {
	lru *lru.Cache[digest, classResult]
}

func newClassCache(size int) *classCache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[digest, classResult](size)
	if err != nil {
		return nil
	}
	return &classCache{lru: c}
}

func (c *classCache) get(d digest) (classResult, bool) {
	if c == nil {
		return classResult{}, false
	}
	return c.lru.Get(d)
}

func (c *classCache) add(d digest, r classResult) {
	if c == nil {
		return
	}
	c.lru.Add(d, r)
}

func (c *classCache) len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
