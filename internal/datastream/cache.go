package datastream

import (
	"container/list"
	"os"
	"time"
)

// fileLRU bounds the number of simultaneously open file handles for one
// datastream to maxOpen, closing the least-recently-used handle when a
// new one is needed.
type fileLRU struct {
	maxOpen int
	order   *list.List // front = most recently used
	entries map[string]*list.Element
}

type lruEntry struct {
	path string
	f    *os.File
}

func newFileLRU(maxOpen int) *fileLRU {
	if maxOpen <= 0 {
		maxOpen = 8
	}
	return &fileLRU{maxOpen: maxOpen, order: list.New(), entries: map[string]*list.Element{}}
}

// Get returns an already-open handle for path, promoting it to
// most-recently-used, or nil if not cached.
func (c *fileLRU) Get(path string) *os.File {
	el, ok := c.entries[path]
	if !ok {
		return nil
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).f
}

// Put registers a newly opened handle for path, evicting the
// least-recently-used handle if the cache is at capacity.
func (c *fileLRU) Put(path string, f *os.File) {
	if existing, ok := c.entries[path]; ok {
		existing.Value.(*lruEntry).f.Close()
		c.order.Remove(existing)
		delete(c.entries, path)
	}
	el := c.order.PushFront(&lruEntry{path: path, f: f})
	c.entries[path] = el
	for c.order.Len() > c.maxOpen {
		back := c.order.Back()
		e := back.Value.(*lruEntry)
		e.f.Close()
		c.order.Remove(back)
		delete(c.entries, e.path)
	}
}

// CloseAll closes every handle the cache holds, for shutdown.
func (c *fileLRU) CloseAll() {
	for c.order.Len() > 0 {
		back := c.order.Back()
		e := back.Value.(*lruEntry)
		e.f.Close()
		c.order.Remove(back)
		delete(c.entries, e.path)
	}
}

// dirCache caches one directory's file listing, invalidated when the
// directory's mtime changes.
type dirCache struct {
	dir     string
	mtime   time.Time
	entries []string
}

// List returns dir's entries, refreshing the cache if dir's mtime has
// changed since the last call.
func (c *dirCache) List(dir string) ([]string, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if c.dir == dir && c.mtime.Equal(fi.ModTime()) {
		return c.entries, nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, err
	}
	c.dir = dir
	c.mtime = fi.ModTime()
	c.entries = names
	return names, nil
}

// Invalidate forces the next List call to re-read the directory.
func (c *dirCache) Invalidate() {
	c.mtime = time.Time{}
}
