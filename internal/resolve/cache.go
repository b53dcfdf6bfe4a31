package resolve

// CacheEntry is the content of one document as it was supplied to the resolver.
type CacheEntry struct {
	DocID   string
	Title   string
	Content string
}

// Cache maps document ids to the content fetched during one session and
// carries the gate that decides whether retrieval is still offered. It is
// session-local and not safe for concurrent use.
type Cache struct {
	entries map[string]CacheEntry
	order   []string
	open    bool
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]CacheEntry), open: true}
}

func (c *Cache) Lookup(docID string) (CacheEntry, bool) {
	e, ok := c.entries[docID]
	return e, ok
}

// Store records content for docID. A repeat store is a no-op and reports false.
func (c *Cache) Store(docID, content, title string) bool {
	if _, ok := c.entries[docID]; ok {
		return false
	}
	c.entries[docID] = CacheEntry{DocID: docID, Title: title, Content: content}
	c.order = append(c.order, docID)
	return true
}

func (c *Cache) Len() int { return len(c.order) }

// Entries returns cached documents in the order they were fetched.
func (c *Cache) Entries() []CacheEntry {
	out := make([]CacheEntry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

func (c *Cache) GateOpen() bool { return c.open }

// CloseGate withdraws the retrieval capability for the rest of the session.
// There is no way to reopen it.
func (c *Cache) CloseGate() { c.open = false }
