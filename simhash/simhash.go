package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// Fingerprint computes a 64-bit SimHash of the given text.
// Uses FNV-64a hash on word-level tokens with bit vector accumulation.
func Fingerprint(text string) uint64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	var vector [64]int

	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		hash := h.Sum64()

		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fingerprint |= 1 << uint(i)
		}
	}

	return fingerprint
}

// Distance returns the Hamming distance between two SimHash fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar returns true if the Hamming distance between two fingerprints
// is less than or equal to the threshold.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// Index holds fingerprints in insertion order and answers near-duplicate
// queries by linear scan. It is not safe for concurrent use.
type Index struct {
	threshold int
	ids       []string
	prints    []uint64
}

// NewIndex creates an Index that treats fingerprints within threshold bits
// as near-duplicates.
func NewIndex(threshold int) *Index {
	return &Index{threshold: threshold}
}

// Add records fp under id. Zero fingerprints (empty text) are ignored.
func (x *Index) Add(id string, fp uint64) {
	if fp == 0 {
		return
	}
	x.ids = append(x.ids, id)
	x.prints = append(x.prints, fp)
}

// Match returns the id of the earliest indexed fingerprint similar to fp.
func (x *Index) Match(fp uint64) (string, bool) {
	if fp == 0 {
		return "", false
	}
	for i, p := range x.prints {
		if Similar(p, fp, x.threshold) {
			return x.ids[i], true
		}
	}
	return "", false
}

// Len returns the number of indexed fingerprints.
func (x *Index) Len() int { return len(x.prints) }
