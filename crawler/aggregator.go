package crawler

import (
	"sync"

	"github.com/use-agent/deepcrawl/models"
	"github.com/use-agent/deepcrawl/simhash"
)

// nearDupThreshold is the Hamming distance at or below which two pages'
// content fingerprints mark them as near-duplicates.
const nearDupThreshold = 3

// Aggregator collects page results in completion order. Record is safe for
// concurrent use; entries are never changed or removed once recorded.
type Aggregator struct {
	mu      sync.Mutex
	results []models.PageResult
	index   *simhash.Index
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{index: simhash.NewIndex(nearDupThreshold)}
}

// Record appends r and returns the stored copy. Successful pages get a
// content fingerprint, and DuplicateOf names the first earlier page whose
// fingerprint is within nearDupThreshold bits.
func (a *Aggregator) Record(r models.PageResult) models.PageResult {
	if r.Status == models.StatusOK && r.Content != "" {
		r.Fingerprint = simhash.Fingerprint(r.Content)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if r.Fingerprint != 0 {
		if orig, ok := a.index.Match(r.Fingerprint); ok {
			r.DuplicateOf = orig
		}
		a.index.Add(r.URL, r.Fingerprint)
	}
	a.results = append(a.results, r)
	return r
}

// Snapshot returns a copy of the results recorded so far.
func (a *Aggregator) Snapshot() []models.PageResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.PageResult, len(a.results))
	copy(out, a.results)
	return out
}

// Len returns the number of recorded results.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}
