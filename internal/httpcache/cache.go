package httpcache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Response is a completed upstream response held in memory.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

type lruItem struct {
	key  string // needed to drop the map entry when the item falls off the list
	resp Response
}

// Stats counts lookups since the cache was created.
type Stats struct {
	Hits, Misses, Evictions int
}

// Cache keeps the most recently used completions, each for at most ttl
// (0 keeps them until evicted by size).
type Cache struct {
	ttl time.Duration
	max int

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front is most recently used
	stats Stats
}

func New(ttl time.Duration, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Cache{
		ttl:   max(ttl, 0),
		max:   maxEntries,
		items: make(map[string]*list.Element, maxEntries),
		order: list.New(),
	}
}

// Get returns the response stored under key if it is still fresh at now.
func (c *Cache) Get(key string, now time.Time) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if ok && c.expired(el.Value.(*lruItem).resp, now) {
		c.remove(el)
		ok = false
	}
	if !ok {
		c.stats.Misses++
		return Response{}, false
	}
	c.stats.Hits++
	c.order.MoveToFront(el)
	return el.Value.(*lruItem).resp, true
}

// Put stores a copy of resp, evicting the least recently used responses
// beyond the size bound.
func (c *Cache) Put(key string, resp Response) {
	resp.Header = cloneHeader(resp.Header)
	resp.Body = append([]byte(nil), resp.Body...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*lruItem).resp = resp
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&lruItem{key: key, resp: resp})
	for c.order.Len() > c.max {
		c.remove(c.order.Back())
		c.stats.Evictions++
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) expired(r Response, now time.Time) bool {
	return c.ttl > 0 && now.Sub(r.StoredAt) >= c.ttl
}

// remove must be called with mu held.
func (c *Cache) remove(el *list.Element) {
	delete(c.items, el.Value.(*lruItem).key)
	c.order.Remove(el)
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}

// RequestKey identifies a completion request: method, URL, the listed
// headers (order independent) and the body. Two requests with the same key
// get the same answer at temperature 0.
func RequestKey(req *http.Request, body []byte, headers []string) string {
	names := make([]string, 0, len(headers))
	for _, h := range headers {
		if h = http.CanonicalHeaderKey(strings.TrimSpace(h)); h != "" {
			names = append(names, h)
		}
	}
	sort.Strings(names)

	sum := sha256.New()
	sum.Write([]byte(req.Method + " " + req.URL.String() + "\n"))
	for _, n := range names {
		if v := strings.TrimSpace(req.Header.Get(n)); v != "" {
			sum.Write([]byte(n + ": " + v + "\n"))
		}
	}
	sum.Write([]byte{0})
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}
