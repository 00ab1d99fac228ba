package baseline

// cacheKey identifies an emission cache entry. branch is sanitized.
type cacheKey struct {
	branch string
	table  string
}

// EmissionCache remembers, per branch and table, the last normalized schema
// for which a migration was written. It lives for the process lifetime and
// is not safe for concurrent use; the DB watch loop owns it.
type EmissionCache struct {
	entries map[cacheKey]string
}

// NewEmissionCache returns an empty cache.
func NewEmissionCache() *EmissionCache {
	return &EmissionCache{entries: make(map[cacheKey]string)}
}

// Get returns the last emitted schema for branch and table.
func (c *EmissionCache) Get(branch, table string) (string, bool) {
	s, ok := c.entries[cacheKey{branch, table}]
	return s, ok
}

// Set records schema as emitted for branch and table.
func (c *EmissionCache) Set(branch, table, schema string) {
	c.entries[cacheKey{branch, table}] = schema
}

// Delete forgets the entry for branch and table.
func (c *EmissionCache) Delete(branch, table string) {
	delete(c.entries, cacheKey{branch, table})
}

// Len returns the number of entries.
func (c *EmissionCache) Len() int {
	return len(c.entries)
}
