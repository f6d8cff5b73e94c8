package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/model"
)

var (
	addresses  = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// NormalizeMessage removes the parts of a message that change between two
// occurrences of the same error, such as object addresses.
func NormalizeMessage(msg string) string {
	msg = addresses.ReplaceAllString(msg, "0x?")
	return strings.TrimSpace(whitespace.ReplaceAllString(msg, " "))
}

// Fingerprint summarizes where an error happened: the failing frames and
// the detected patterns.
func Fingerprint(ectx *model.ErrorContext) string {
	var b strings.Builder
	for _, f := range ectx.Frames {
		b.WriteString(f.File)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(f.Line))
		b.WriteByte(':')
		b.WriteString(f.Function)
		b.WriteByte('|')
	}
	b.WriteString(strings.Join(ectx.Patterns, ","))
	return b.String()
}

// Key is the cache key of an error context.
func Key(ectx *model.ErrorContext) string {
	h := sha256.New()
	h.Write([]byte(ectx.Category))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeMessage(ectx.Message)))
	h.Write([]byte{0})
	h.Write([]byte(Fingerprint(ectx)))
	return hex.EncodeToString(h.Sum(nil))
}

// Entry is one cached explanation.
type Entry struct {
	Explanation *model.AIExplanation
	InsertedAt  time.Time
}

type item struct {
	key   string
	entry Entry
}

// Cache is an LRU of explanations. Only explanations at or above the
// configured confidence threshold are stored.
type Cache struct {
	store *config.Store
	now   func() time.Time

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recently used
}

func New(store *config.Store) *Cache {
	return &Cache{
		store: store,
		now:   time.Now,
		items: make(map[string]*list.Element),
		order: list.New(),
	}
}

// Get returns a copy of the explanation stored under key.
func (c *Cache) Get(key string) (*model.AIExplanation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*item).entry.Explanation.Clone(), true
}

// Put stores a copy of e under key and reports whether it was accepted.
func (c *Cache) Put(key string, e *model.AIExplanation) bool {
	if e == nil {
		return false
	}
	cfg := c.store.Load()
	if e.Confidence < cfg.AI.Threshold {
		return false
	}
	entry := Entry{Explanation: e.Clone(), InsertedAt: c.now()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		elem.Value.(*item).entry = entry
		c.order.MoveToFront(elem)
	} else {
		c.items[key] = c.order.PushFront(&item{key: key, entry: entry})
	}
	for c.order.Len() > cfg.Cache.Size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*item).key)
	}
	return true
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
