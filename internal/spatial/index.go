package spatial

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Index errors.
var (
	// ErrInvalidBounds indicates a zone with non-positive extents.
	ErrInvalidBounds = errors.New("zone bounds must have positive width and height")

	// ErrInvalidDepth indicates a negative nesting depth.
	ErrInvalidDepth = errors.New("zone depth must be non-negative")

	// ErrDuplicateZone indicates a zone id that is already registered.
	ErrDuplicateZone = errors.New("zone id already registered")

	// ErrUnknownParent indicates a parent id with no registered zone.
	ErrUnknownParent = errors.New("parent zone not registered")
)

// QueryResult is the immutable outcome of a single index query.
type QueryResult struct {
	// Zones are the matches ordered by depth descending then area
	// ascending, so the most specific drop target comes first.
	Zones []Zone

	// QueryTime is how long the query took.
	QueryTime time.Duration

	// ZonesExamined is how many zones the scan visited.
	ZonesExamined int

	// CacheHit is true if the result was served from the query cache.
	CacheHit bool
}

// Index stores drop zones and answers point, region, and proximity queries.
//
// The zone set is scanned linearly in depth buckets rather than held in a
// spatial tree. Canvases carry hundreds of zones, not thousands, and the
// linear scan keeps the ordering contract trivially correct. Query results
// are memoized; any mutation drops the whole cache.
type Index struct {
	mu      sync.RWMutex
	zones   map[string]*zoneRecord
	byDepth map[int][]string
	cache   *queryCache
	logger  *log.Logger
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithCacheSize sets the query cache ceiling.
func WithCacheSize(n int) IndexOption {
	return func(ix *Index) {
		ix.cache = newQueryCache(n)
	}
}

// NewIndex creates an empty index.
func NewIndex(logger *log.Logger, opts ...IndexOption) *Index {
	if logger == nil {
		logger = log.Default()
	}
	ix := &Index{
		zones:   make(map[string]*zoneRecord),
		byDepth: make(map[int][]string),
		cache:   newQueryCache(0),
		logger:  logger.With("component", "spatial"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// AddZone registers a zone. The id must be unique, the bounds positive,
// the depth non-negative, and the parent (if any) already registered.
func (ix *Index) AddZone(zone Zone) error {
	if !zone.Bounds.Valid() {
		return ErrInvalidBounds
	}
	if zone.Depth < 0 {
		return ErrInvalidDepth
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.zones[zone.ID]; ok {
		return ErrDuplicateZone
	}
	if zone.ParentID != "" {
		if _, ok := ix.zones[zone.ParentID]; !ok {
			return ErrUnknownParent
		}
	}

	rec := &zoneRecord{
		id:          zone.ID,
		bounds:      zone.Bounds,
		depth:       zone.Depth,
		parentID:    zone.ParentID,
		constraints: zone.Constraints,
	}
	if len(zone.Accepts) > 0 {
		rec.accepts = make([]string, len(zone.Accepts))
		copy(rec.accepts, zone.Accepts)
	}

	ix.zones[zone.ID] = rec
	ix.byDepth[zone.Depth] = append(ix.byDepth[zone.Depth], zone.ID)
	ix.cache.invalidate()

	ix.logger.Debug("zone added", "zone", zone.ID, "depth", zone.Depth)
	return nil
}

// RemoveZone unregisters a zone and every descendant whose parent chain
// resolves to it. Returns false if the id is unknown.
func (ix *Index) RemoveZone(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.zones[id]; !ok {
		ix.logger.Debug("remove of unknown zone", "zone", id)
		return false
	}

	// Direct-children adjacency, built per call. The index does not keep
	// a persistent child map because removal is rare next to querying.
	children := make(map[string][]string, len(ix.zones))
	for zid, rec := range ix.zones {
		if rec.parentID != "" {
			children[rec.parentID] = append(children[rec.parentID], zid)
		}
	}

	queue := []string{id}
	removed := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		rec, ok := ix.zones[cur]
		if !ok {
			continue
		}
		queue = append(queue, children[cur]...)
		ix.removeFromDepthLocked(rec.depth, cur)
		delete(ix.zones, cur)
		removed++
	}

	ix.cache.invalidate()
	ix.logger.Debug("zone removed", "zone", id, "cascade", removed-1)
	return true
}

// UpdateBounds replaces a zone's rectangle in place.
// Returns false if the id is unknown or the bounds are not positive.
func (ix *Index) UpdateBounds(id string, bounds Bounds) bool {
	if !bounds.Valid() {
		ix.logger.Debug("bounds update rejected", "zone", id)
		return false
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	rec, ok := ix.zones[id]
	if !ok {
		ix.logger.Debug("bounds update for unknown zone", "zone", id)
		return false
	}

	rec.bounds = bounds
	ix.cache.invalidate()
	return true
}

// UpdateConstraints merges a partial constraint update into a zone.
// Returns false if the id is unknown.
func (ix *Index) UpdateConstraints(id string, patch ConstraintPatch) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rec, ok := ix.zones[id]
	if !ok {
		ix.logger.Debug("constraint update for unknown zone", "zone", id)
		return false
	}

	rec.constraints.Apply(patch)
	ix.cache.invalidate()
	return true
}

// Zone returns a snapshot of the zone with the given id.
func (ix *Index) Zone(id string) (Zone, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rec, ok := ix.zones[id]
	if !ok {
		return Zone{}, false
	}
	return rec.snapshot(), true
}

// Count returns the number of registered zones.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.zones)
}

// QueryPoint returns every zone whose bounds contain the point, innermost
// first. A non-empty acceptType keeps only zones that admit that type.
func (ix *Index) QueryPoint(x, y float64, acceptType string) QueryResult {
	start := time.Now()
	sig := pointSignature(x, y, acceptType)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if cached, ok := ix.cache.get(sig); ok {
		cached.CacheHit = true
		cached.QueryTime = time.Since(start)
		return cached
	}

	result := ix.scanLocked(acceptType, func(rec *zoneRecord) bool {
		return rec.bounds.Contains(x, y)
	})
	result.QueryTime = time.Since(start)
	ix.cache.put(sig, result)
	return result
}

// QueryRegion returns every zone intersecting the region, or fully
// contained by it when fullyContained is set. Same ordering as QueryPoint.
func (ix *Index) QueryRegion(region Bounds, acceptType string, fullyContained bool) QueryResult {
	start := time.Now()
	sig := regionSignature(region, acceptType, fullyContained)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if cached, ok := ix.cache.get(sig); ok {
		cached.CacheHit = true
		cached.QueryTime = time.Since(start)
		return cached
	}

	result := ix.scanLocked(acceptType, func(rec *zoneRecord) bool {
		if fullyContained {
			return region.ContainsBounds(rec.bounds)
		}
		return region.Intersects(rec.bounds)
	})
	result.QueryTime = time.Since(start)
	ix.cache.put(sig, result)
	return result
}

// Nearest returns the zone whose centroid is closest to the point within
// maxDistance. Returns false if no zone qualifies.
func (ix *Index) Nearest(x, y, maxDistance float64, acceptType string) (Zone, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var best *zoneRecord
	bestDist := maxDistance
	for _, rec := range ix.zones {
		if acceptType != "" && !acceptsLocked(rec, acceptType) {
			continue
		}
		d := rec.bounds.DistanceTo(x, y)
		if d > bestDist {
			continue
		}
		// Break distance ties by id so results are deterministic.
		if d == bestDist && best != nil && rec.id >= best.id {
			continue
		}
		best = rec
		bestDist = d
	}

	if best == nil {
		return Zone{}, false
	}
	return best.snapshot(), true
}

// Hierarchy returns the ancestor chain for a zone, root first, ending
// with the zone itself. Returns nil for an unknown id.
func (ix *Index) Hierarchy(id string) []Zone {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rec, ok := ix.zones[id]
	if !ok {
		return nil
	}

	var chain []Zone
	seen := make(map[string]bool)
	for rec != nil && !seen[rec.id] {
		seen[rec.id] = true
		chain = append(chain, rec.snapshot())
		if rec.parentID == "" {
			break
		}
		rec = ix.zones[rec.parentID]
	}

	// Walked leaf to root; callers want root first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// CacheStats returns query cache statistics.
func (ix *Index) CacheStats() CacheStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.cache.stats()
}

// scanLocked visits every zone bucket in descending depth order and
// collects matches, sorted within a bucket by area then id.
// Callers must hold the index lock.
func (ix *Index) scanLocked(acceptType string, match func(*zoneRecord) bool) QueryResult {
	depths := make([]int, 0, len(ix.byDepth))
	for d := range ix.byDepth {
		depths = append(depths, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(depths)))

	var zones []Zone
	examined := 0
	for _, d := range depths {
		bucketStart := len(zones)
		for _, id := range ix.byDepth[d] {
			rec := ix.zones[id]
			examined++
			if acceptType != "" && !acceptsLocked(rec, acceptType) {
				continue
			}
			if match(rec) {
				zones = append(zones, rec.snapshot())
			}
		}
		bucket := zones[bucketStart:]
		sort.Slice(bucket, func(i, j int) bool {
			ai, aj := bucket[i].Bounds.Area(), bucket[j].Bounds.Area()
			if ai != aj {
				return ai < aj
			}
			return bucket[i].ID < bucket[j].ID
		})
	}

	return QueryResult{Zones: zones, ZonesExamined: examined}
}

// removeFromDepthLocked drops a zone id from its depth bucket.
// Callers must hold the index lock.
func (ix *Index) removeFromDepthLocked(depth int, id string) {
	bucket := ix.byDepth[depth]
	for i, zid := range bucket {
		if zid == id {
			ix.byDepth[depth] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(ix.byDepth[depth]) == 0 {
		delete(ix.byDepth, depth)
	}
}

func acceptsLocked(rec *zoneRecord, typ string) bool {
	if len(rec.accepts) == 0 {
		return true
	}
	for _, a := range rec.accepts {
		if a == Wildcard || a == typ {
			return true
		}
	}
	return false
}

func pointSignature(x, y float64, acceptType string) string {
	var sb strings.Builder
	sb.WriteString("pt:")
	sb.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatFloat(y, 'g', -1, 64))
	sb.WriteByte(':')
	sb.WriteString(acceptType)
	return sb.String()
}

func regionSignature(region Bounds, acceptType string, fullyContained bool) string {
	var sb strings.Builder
	sb.WriteString("rg:")
	sb.WriteString(strconv.FormatFloat(region.X, 'g', -1, 64))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatFloat(region.Y, 'g', -1, 64))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatFloat(region.Width, 'g', -1, 64))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatFloat(region.Height, 'g', -1, 64))
	sb.WriteByte(':')
	sb.WriteString(acceptType)
	if fullyContained {
		sb.WriteString(":full")
	}
	return sb.String()
}
