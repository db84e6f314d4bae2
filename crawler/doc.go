// Package crawler implements a breadth-first, depth-bounded crawl over a
// single seed URL.
//
// A Frontier deduplicates and queues (URL, depth) tasks, a single dispatcher
// hands them to at most Concurrency workers in FIFO order, and every
// dispatched task yields exactly one models.PageResult in the Aggregator,
// whether the page was fetched, failed to fetch, or produced no content.
package crawler
