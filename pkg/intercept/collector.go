package intercept

import (
	"sync"

	"vurakit/agentveil/pkg/client"
)

// Collector accumulates scan findings for a session. It keeps them in the
// order they were added, duplicates included. It is safe for concurrent
// use.
type Collector struct {
	mu       sync.Mutex
	findings []client.Entity
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add appends entities.
func (c *Collector) Add(entities ...client.Entity) {
	if len(entities) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findings = append(c.findings, entities...)
}

// Findings returns a copy of everything collected.
func (c *Collector) Findings() []client.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]client.Entity(nil), c.findings...)
}

// Len returns the number of collected entities.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.findings)
}

// Clear drops all findings.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findings = nil
}
