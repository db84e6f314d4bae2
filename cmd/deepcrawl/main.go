// Package main provides the deepcrawl command-line tool.
//
// deepcrawl crawls a site breadth-first from a seed URL, extracts the
// readable content of every page and writes it all into one Markdown (or
// JSON) document.
//
// Usage:
//
//	deepcrawl crawl https://example.com --depth 2 --concurrency 4
//	deepcrawl serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}
