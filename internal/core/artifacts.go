package core

import (
	"errors"
	"sync"
	"time"
)

// ErrArtifactNotFound is returned for unknown or expired run downloads.
var ErrArtifactNotFound = errors.New("run results not found or expired")

// Artifact is the downloadable workbook of one run.
type Artifact struct {
	RunID     string
	FileName  string
	Data      []byte
	Sheets    []string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ArtifactCache keeps finished workbooks in memory for a limited time,
// keyed by run ID. Nothing is written to disk.
type ArtifactCache struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items map[string]*Artifact
}

// NewArtifactCache creates a cache whose entries live for ttl.
func NewArtifactCache(ttl time.Duration) *ArtifactCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ArtifactCache{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]*Artifact),
	}
}

// Put stores a workbook for runID and returns the stored artifact.
func (c *ArtifactCache) Put(runID, fileName string, data []byte, sheets []string) *Artifact {
	now := c.now()
	a := &Artifact{
		RunID:     runID,
		FileName:  fileName,
		Data:      data,
		Sheets:    sheets,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(now)
	c.items[runID] = a
	return a
}

// Get returns the artifact for runID, or ErrArtifactNotFound.
func (c *ArtifactCache) Get(runID string) (*Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.items[runID]
	if !ok {
		return nil, ErrArtifactNotFound
	}
	if !c.now().Before(a.ExpiresAt) {
		delete(c.items, runID)
		return nil, ErrArtifactNotFound
	}
	return a, nil
}

// Sweep drops expired artifacts and returns how many were removed.
func (c *ArtifactCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

// Len returns the number of cached artifacts, expired or not.
func (c *ArtifactCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *ArtifactCache) sweepLocked(now time.Time) int {
	removed := 0
	for id, a := range c.items {
		if !now.Before(a.ExpiresAt) {
			delete(c.items, id)
			removed++
		}
	}
	return removed
}
