package memory

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/djav1985/v-axion-ai/core"
)

const (
	// linkK is how many recent prior entries each insert is compared
	// against for graph linking.
	linkK = 4

	// linkThreshold is the minimum cosine similarity for an edge.
	linkThreshold = 0.2
)

// SourceKind classifies what produced a memory entry.
type SourceKind string

const (
	SourceInbox     SourceKind = "inbox"
	SourceTool      SourceKind = "tool"
	SourceInjection SourceKind = "injection"
	SourceError     SourceKind = "error"
)

// Entry is one stored unit of context. Entries are immutable after
// creation; their decayed weight is computed from elapsed time at
// retrieval, never stored.
type Entry struct {
	ID        int
	Text      string
	Kind      SourceKind
	Timestamp time.Time

	vector map[int]float64
	edges  map[int]float64 // entry id -> weight in (0, 1]
}

// Edges returns the entry's weighted links to other entry ids.
func (e *Entry) Edges() map[int]float64 {
	out := make(map[int]float64, len(e.edges))
	for id, w := range e.edges {
		out[id] = w
	}
	return out
}

// Scored pairs an entry with its retrieval score.
type Scored struct {
	Entry *Entry
	Score float64
}

// Config fixes a store's bounds at construction.
type Config struct {
	// MaxEntries is the hard entry cap.
	MaxEntries int

	// DecayWindow is how long an entry takes to decay from full weight
	// to zero.
	DecayWindow time.Duration
}

// Option configures optional store behavior.
type Option func(*Store)

// WithClock overrides the store's time source. Tests use this to make
// decay deterministic.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is one actor's functional memory. It is exclusively owned by
// that actor's loop and is not safe for concurrent use.
type Store struct {
	maxEntries  int
	decayWindow float64 // seconds

	vocab   map[string]int // term -> index, append-only
	entries []*Entry       // insertion order
	byID    map[int]*Entry
	nextID  int
	now     func() time.Time
}

// New creates a store with the given bounds. A non-positive cap or decay
// window is a *core.CapacityError: fatal at construction, never at
// operation time.
func New(cfg Config, opts ...Option) (*Store, error) {
	if cfg.MaxEntries <= 0 {
		return nil, &core.CapacityError{Reason: fmt.Sprintf("memory max entries must be positive, got %d", cfg.MaxEntries)}
	}
	if cfg.DecayWindow <= 0 {
		return nil, &core.CapacityError{Reason: fmt.Sprintf("memory decay window must be positive, got %s", cfg.DecayWindow)}
	}
	s := &Store{
		maxEntries:  cfg.MaxEntries,
		decayWindow: cfg.DecayWindow.Seconds(),
		vocab:       make(map[string]int),
		byID:        make(map[int]*Entry),
		nextID:      1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Len returns the current entry count.
func (s *Store) Len() int {
	return len(s.entries)
}

// Insert tokenizes text, grows the vocabulary with any new terms, stores
// a new entry, and links it to each of the K most recent prior entries
// whose similarity exceeds the link threshold. At capacity, the entry
// with the lowest currently-decayed weight is evicted first (ties broken
// by oldest timestamp). Returns nil when text carries no tokens.
func (s *Store) Insert(text string, kind SourceKind, ts time.Time) *Entry {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	// Vocabulary indices are append-only and never reused, so vectors
	// built in earlier inserts stay valid across retrievals.
	counts := make(map[int]float64, len(tokens))
	for _, tok := range tokens {
		idx, ok := s.vocab[tok]
		if !ok {
			idx = len(s.vocab)
			s.vocab[tok] = idx
		}
		counts[idx]++
	}
	normalize(counts)
	vector := counts

	if len(s.entries) >= s.maxEntries {
		s.evict(ts)
	}

	entry := &Entry{
		ID:        s.nextID,
		Text:      text,
		Kind:      kind,
		Timestamp: ts,
		vector:    vector,
		edges:     make(map[int]float64),
	}
	s.nextID++

	// Graph construction is local and incremental: only the K most
	// recent prior entries are candidates for an edge.
	start := len(s.entries) - linkK
	if start < 0 {
		start = 0
	}
	for _, prior := range s.entries[start:] {
		sim := cosine(vector, prior.vector)
		if sim > linkThreshold {
			entry.edges[prior.ID] = sim
			prior.edges[entry.ID] = sim
		}
	}

	s.entries = append(s.entries, entry)
	s.byID[entry.ID] = entry
	return entry
}

// Retrieve scores every stored entry against the query and returns the
// topK best. The query is vectorized against the existing vocabulary
// only; unseen terms contribute nothing and do not grow the vocabulary.
//
// Scoring: base = cosine * decay(now - timestamp). The topK entries by
// base score become candidates; each candidate then earns a bonus equal
// to the sum of its edge weights into candidates ranked above it, so
// entries clustered with other currently-relevant entries climb. Ties
// break toward the most recent timestamp. The result is a pure function
// of store state, query, and clock.
func (s *Store) Retrieve(query string, topK int) []Scored {
	if topK <= 0 || len(s.entries) == 0 {
		return nil
	}
	qvec := s.queryVector(query)
	if len(qvec) == 0 {
		return nil
	}

	now := s.now()
	candidates := make([]Scored, len(s.entries))
	for i, e := range s.entries {
		base := cosine(qvec, e.vector) * s.decay(now.Sub(e.Timestamp))
		candidates[i] = Scored{Entry: e, Score: base}
	}
	sortScored(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	// Bonus pass in descending base order: an entry only collects edge
	// weight from candidates already ahead of it.
	for i := range candidates {
		for j := 0; j < i; j++ {
			if w, ok := candidates[i].Entry.edges[candidates[j].Entry.ID]; ok {
				candidates[i].Score += w
			}
		}
	}
	sortScored(candidates)
	return candidates
}

// Recent returns up to n latest entries, oldest first.
func (s *Store) Recent(n int) []*Entry {
	if n <= 0 {
		return nil
	}
	start := len(s.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]*Entry, len(s.entries)-start)
	copy(out, s.entries[start:])
	return out
}

// Snapshot returns the dashboard view of the latest n entries and the
// graph edges among them.
func (s *Store) Snapshot(n int) core.MemorySnapshot {
	recent := s.Recent(n)
	snap := core.MemorySnapshot{
		Entries: make([]core.MemoryEntrySnapshot, 0, len(recent)),
	}
	included := make(map[int]struct{}, len(recent))
	for _, e := range recent {
		included[e.ID] = struct{}{}
		snap.Entries = append(snap.Entries, core.MemoryEntrySnapshot{
			ID:        e.ID,
			Text:      e.Text,
			Kind:      string(e.Kind),
			Timestamp: e.Timestamp,
		})
	}
	for _, e := range recent {
		for id, w := range e.edges {
			if _, ok := included[id]; ok && id > e.ID {
				snap.Edges = append(snap.Edges, core.MemoryEdgeSnapshot{From: e.ID, To: id, Weight: w})
			}
		}
	}
	sort.Slice(snap.Edges, func(i, j int) bool {
		if snap.Edges[i].From != snap.Edges[j].From {
			return snap.Edges[i].From < snap.Edges[j].From
		}
		return snap.Edges[i].To < snap.Edges[j].To
	})
	return snap
}

// decay maps elapsed time to [0, 1]: full weight at zero, linearly down
// to zero at the decay window, floored there.
func (s *Store) decay(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	d := 1 - age.Seconds()/s.decayWindow
	if d < 0 {
		return 0
	}
	return d
}

// evict removes the entry with the lowest decayed weight, breaking ties
// toward the oldest timestamp, and detaches its graph edges.
func (s *Store) evict(now time.Time) {
	victim := 0
	victimScore := math.Inf(1)
	for i, e := range s.entries {
		score := s.decay(now.Sub(e.Timestamp))
		if score < victimScore ||
			(score == victimScore && e.Timestamp.Before(s.entries[victim].Timestamp)) {
			victim = i
			victimScore = score
		}
	}
	evicted := s.entries[victim]
	for id := range evicted.edges {
		if peer, ok := s.byID[id]; ok {
			delete(peer.edges, evicted.ID)
		}
	}
	delete(s.byID, evicted.ID)
	s.entries = append(s.entries[:victim], s.entries[victim+1:]...)
}

func (s *Store) queryVector(query string) map[int]float64 {
	counts := make(map[int]float64)
	for _, tok := range tokenize(query) {
		if idx, ok := s.vocab[tok]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return nil
	}
	normalize(counts)
	return counts
}

// sortScored orders by score descending, then most recent timestamp,
// then highest id, so equal-score orderings are still deterministic.
func sortScored(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].Entry.Timestamp.Equal(scored[j].Entry.Timestamp) {
			return scored[i].Entry.Timestamp.After(scored[j].Entry.Timestamp)
		}
		return scored[i].Entry.ID > scored[j].Entry.ID
	})
}

// cosine computes the dot product of two L2-normalised sparse vectors.
// Accumulation runs in ascending index order so repeated calls over the
// same vectors are bit-identical, keeping retrieval fully deterministic.
func cosine(a, b map[int]float64) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	shared := make([]int, 0, len(a))
	for idx := range a {
		if _, ok := b[idx]; ok {
			shared = append(shared, idx)
		}
	}
	sort.Ints(shared)
	var dot float64
	for _, idx := range shared {
		dot += a[idx] * b[idx]
	}
	return dot
}

// normalize scales a sparse count vector to unit length in place, again
// accumulating in index order for determinism.
func normalize(counts map[int]float64) {
	idxs := make([]int, 0, len(counts))
	for idx := range counts {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	var norm float64
	for _, idx := range idxs {
		norm += counts[idx] * counts[idx]
	}
	norm = math.Sqrt(norm)
	for _, idx := range idxs {
		counts[idx] /= norm
	}
}
