// Package opcache caches parsed GraphQL query documents by fingerprint
// (spec.md §6.2: schema generation, document text, operation name), so a
// gateway serving the same persisted/repeated query text over and over
// re-parses it once instead of on every request. The document text is
// hashed exactly as received: it is not normalized, so two texts that
// differ only in whitespace or selection order get separate entries.
//
// It deliberately holds parsed language.QueryDocuments, not bound
// operation.Operations: binding evaluates @skip/@include against a
// request's concrete variables (internal/operation/bind.go), so the bound
// tree is specific to one request's variable set and isn't safely
// cacheable across requests the way the parsed document is.
//
// Eviction is a plain container/list LRU guarded by a mutex — no LRU
// library appears anywhere in the retrieved corpus, so this is deliberately
// stdlib (see DESIGN.md). Concurrent misses for the same fingerprint
// collapse onto one parse via golang.org/x/sync/singleflight, already a
// direct go.mod dependency.
package opcache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/fedgw/gateway/internal/language"
)

// Cache is safe for concurrent use.
type Cache struct {
	// generation is mixed into every fingerprint so a schema hot-reload
	// (spec.md §6.1: supergraph SDL "parsed once at startup and on
	// hot-reload") invalidates every entry without an explicit sweep —
	// callers change it by constructing a new Cache per schema generation;
	// Reset drops the entries but keeps the generation.
	generation string

	capacity int
	group    singleflight.Group

	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element
}

type entry struct {
	key string
	doc *language.QueryDocument
}

// New returns a Cache bounded to capacity entries (<=0 means unbounded),
// scoped to schemaGeneration. schemaGeneration should change whenever the
// supergraph SDL is reloaded — callers typically hash the SDL source once
// at load time and pass that hash here.
func New(capacity int, schemaGeneration string) *Cache {
	return &Cache{
		generation: schemaGeneration,
		capacity:   capacity,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
	}
}

// Get returns the parsed document for (query, operationName), parsing and
// caching it on a miss. Concurrent callers racing on the same fingerprint
// share one parse.
func (c *Cache) Get(ctx context.Context, query, operationName string) (*language.QueryDocument, error) {
	key := c.fingerprint(query, operationName)

	if doc, ok := c.lookup(key); ok {
		return doc, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if doc, ok := c.lookup(key); ok {
			return doc, nil
		}
		doc, err := language.ParseQuery(query)
		if err != nil {
			return nil, err
		}
		c.insert(key, doc)
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*language.QueryDocument), nil
}

// Len reports the number of cached documents.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Reset discards every cached document, e.g. after a schema hot-reload.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
}

func (c *Cache) fingerprint(query, operationName string) string {
	h := sha256.New()
	h.Write([]byte(c.generation))
	h.Write([]byte{0})
	h.Write([]byte(operationName))
	h.Write([]byte{0})
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) lookup(key string) (*language.QueryDocument, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry).doc, true
}

func (c *Cache) insert(key string, doc *language.QueryDocument) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*entry).doc = doc
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&entry{key: key, doc: doc})
	c.items[key] = el
	if c.capacity > 0 {
		for c.ll.Len() > c.capacity {
			oldest := c.ll.Back()
			if oldest == nil {
				break
			}
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
		}
	}
}
