package handlers

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/albertocavalcante/sitebake/pkg/treesitter"
)

// DefaultRefCacheSize is the number of parsed files whose references are
// remembered.
const DefaultRefCacheSize = 1024

type refKey struct {
	lang treesitter.Language
	sum  uint64
	size int
}

// refCache memoizes parsed references by content, so a scan and the build
// that follows it parse each file once.
type refCache struct {
	lru *lru.Cache[refKey, []Ref]
}

func newRefCache(size int) (*refCache, error) {
	if size <= 0 {
		size = DefaultRefCacheSize
	}
	c, err := lru.New[refKey, []Ref](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create reference cache: %w", err)
	}
	return &refCache{lru: c}, nil
}

func keyOf(lang treesitter.Language, src []byte) refKey {
	return refKey{lang: lang, sum: xxhash.Sum64(src), size: len(src)}
}

func (c *refCache) get(lang treesitter.Language, src []byte) ([]Ref, bool) {
	return c.lru.Get(keyOf(lang, src))
}

func (c *refCache) add(lang treesitter.Language, src []byte, refs []Ref) {
	c.lru.Add(keyOf(lang, src), refs)
}

func (c *refCache) len() int {
	return c.lru.Len()
}
