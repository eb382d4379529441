package pdf

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultCatalogTTL       = 5 * time.Minute
	defaultCatalogDepth     = 5
	defaultCatalogFileLimit = 100
	defaultCatalogScanLimit = 3 * time.Second
)

// FormFile describes one PDF found below the configured directory
type FormFile struct {
	// Path is relative to the configured directory and can be passed back as a pdf reference
	Path         string `json:"pdf"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified"`
}

// FormsRequest filters the catalog. An empty query lists every form.
type FormsRequest struct {
	Query string `json:"query"`
	// Refresh rescans the directory instead of serving a cached scan
	Refresh bool `json:"refresh"`
}

// FormsResult holds catalog entries sorted by path
type FormsResult struct {
	Directory string        `json:"directory"`
	Query     string        `json:"query,omitempty"`
	Forms     []FormFile    `json:"forms"`
	Truncated bool          `json:"truncated"`
	FromCache bool          `json:"from_cache"`
	CacheAge  time.Duration `json:"-"`
}

type catalogEntry struct {
	files      []FormFile
	truncated  bool
	lastUpdate time.Time
}

// directoryCache keeps scan results for a fixed TTL
type directoryCache struct {
	entries map[string]*catalogEntry
	ttl     time.Duration
	mu      sync.RWMutex
}

func newDirectoryCache(ttl time.Duration) *directoryCache {
	return &directoryCache{
		entries: make(map[string]*catalogEntry),
		ttl:     ttl,
	}
}

func (c *directoryCache) get(dir string) *catalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[dir]
	if !ok || time.Since(entry.lastUpdate) > c.ttl {
		return nil
	}
	return entry
}

func (c *directoryCache) set(dir string, files []FormFile, truncated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[dir] = &catalogEntry{files: files, truncated: truncated, lastUpdate: time.Now()}
}

func (c *directoryCache) invalidate(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, dir)
}

// directoryScanner walks a directory tree within depth, file and time limits
type directoryScanner struct {
	maxDepth  int
	fileLimit int
	timeLimit time.Duration
}

type scanState struct {
	root      string
	start     time.Time
	visited   map[string]bool
	files     []FormFile
	truncated bool
}

func (s *directoryScanner) scan(ctx context.Context, root string) ([]FormFile, bool, error) {
	state := &scanState{root: root, start: time.Now(), visited: make(map[string]bool)}
	err := s.scanDir(ctx, root, 0, state)
	return state.files, state.truncated, err
}

func (s *directoryScanner) scanDir(ctx context.Context, dir string, depth int, state *scanState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.maxDepth > 0 && depth >= s.maxDepth {
		return nil
	}
	if s.limitReached(state) {
		state.truncated = true
		return nil
	}

	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil || state.visited[realDir] {
		return nil
	}
	state.visited[realDir] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if state.truncated {
			return nil
		}

		name := entry.Name()
		// hidden files and symlinks are never listed
		if strings.HasPrefix(name, ".") || entry.Type()&os.ModeSymlink != 0 {
			continue
		}

		path := filepath.Join(dir, name)
		if entry.IsDir() {
			if err := s.scanDir(ctx, path, depth+1, state); err != nil {
				return err
			}
			continue
		}
		if !isPDFName(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(state.root, path)
		if err != nil {
			continue
		}
		state.files = append(state.files, FormFile{
			Path:         filepath.ToSlash(rel),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})

		if s.limitReached(state) {
			state.truncated = true
			return nil
		}
	}
	return nil
}

func (s *directoryScanner) limitReached(state *scanState) bool {
	if s.fileLimit > 0 && len(state.files) >= s.fileLimit {
		return true
	}
	return s.timeLimit > 0 && time.Since(state.start) > s.timeLimit
}

// Catalog lists the PDF forms available in the configured directory
type Catalog struct {
	directory string
	cache     *directoryCache
	scanner   *directoryScanner
	scanMu    sync.Mutex
}

// NewCatalog creates a catalog over directory with the default limits
func NewCatalog(directory string) *Catalog {
	return &Catalog{
		directory: directory,
		cache:     newDirectoryCache(defaultCatalogTTL),
		scanner: &directoryScanner{
			maxDepth:  defaultCatalogDepth,
			fileLimit: defaultCatalogFileLimit,
			timeLimit: defaultCatalogScanLimit,
		},
	}
}

// Forms returns the catalog entries matching req.Query
func (c *Catalog) Forms(ctx context.Context, req FormsRequest) (*FormsResult, error) {
	result := &FormsResult{Directory: c.directory, Query: req.Query}
	if req.Refresh {
		c.Refresh()
	}

	entry := c.cache.get(c.directory)
	if entry != nil {
		result.FromCache = true
		result.CacheAge = time.Since(entry.lastUpdate)
	} else {
		c.scanMu.Lock()
		// another caller may have filled the cache while we waited
		if entry = c.cache.get(c.directory); entry == nil {
			files, truncated, err := c.scanner.scan(ctx, c.directory)
			if err != nil {
				c.scanMu.Unlock()
				return nil, err
			}
			sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
			c.cache.set(c.directory, files, truncated)
			entry = c.cache.get(c.directory)
		}
		c.scanMu.Unlock()
	}

	result.Truncated = entry.truncated
	result.Forms = filterForms(entry.files, req.Query)
	return result, nil
}

// Refresh drops the cached scan
func (c *Catalog) Refresh() {
	c.cache.invalidate(c.directory)
}

func filterForms(files []FormFile, query string) []FormFile {
	query = strings.ToLower(strings.TrimSpace(query))
	matched := make([]FormFile, 0, len(files))
	for _, f := range files {
		if matchesQuery(f.Path, query) {
			matched = append(matched, f)
		}
	}
	return matched
}

func isPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// matchesQuery reports whether every word of query appears in some word of the file path
func matchesQuery(path, query string) bool {
	if query == "" {
		return true
	}

	name := strings.ToLower(path)
	if strings.Contains(name, query) {
		return true
	}

	words := splitWords(strings.TrimSuffix(name, ".pdf"))
	for _, queryWord := range splitWords(query) {
		found := false
		for _, word := range words {
			if strings.Contains(word, queryWord) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch r {
		case ' ', '_', '-', '.', '(', ')', '[', ']', '/':
			return true
		}
		return false
	})
}
