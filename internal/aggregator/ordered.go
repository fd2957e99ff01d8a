package aggregator

// orderedCounter counts occurrences per key and remembers first-seen order
type orderedCounter[K comparable] struct {
	keys   []K
	counts map[K]int
}

func newOrderedCounter[K comparable]() *orderedCounter[K] {
	return &orderedCounter[K]{counts: make(map[K]int)}
}

// Inc increments key and reports whether this was its first occurrence
func (c *orderedCounter[K]) Inc(key K) bool {
	_, seen := c.counts[key]
	if !seen {
		c.keys = append(c.keys, key)
	}
	c.counts[key]++
	return !seen
}

func (c *orderedCounter[K]) Count(key K) int {
	return c.counts[key]
}

// Keys returns a copy of the keys in first-seen order
func (c *orderedCounter[K]) Keys() []K {
	out := make([]K, len(c.keys))
	copy(out, c.keys)
	return out
}
