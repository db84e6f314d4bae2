// Package report serializes crawl results into a single document.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/use-agent/deepcrawl/models"
)

// Output formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// NoContent stands in for pages without content in the Markdown document.
const NoContent = "_(No content extracted)_"

// RenderMarkdown returns the Markdown document for pages, one block per page
// in the given order:
//
//	# Page <n>
//	**URL:** <url>
//
//	**Depth:** <depth>
//
//	## Content
//
//	<content>
//
//	---
//
// The depth line is omitted when the depth is unknown. The output depends
// only on pages, so rendering the same slice twice gives identical bytes.
func RenderMarkdown(pages []models.PageResult) string {
	var b strings.Builder
	for i, p := range pages {
		b.WriteString("# Page ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("\n**URL:** ")
		b.WriteString(p.URL)
		b.WriteString("\n\n")
		if p.Depth != nil {
			b.WriteString("**Depth:** ")
			b.WriteString(strconv.Itoa(*p.Depth))
			b.WriteString("\n\n")
		}
		b.WriteString("## Content\n\n")
		if p.Content != "" {
			b.WriteString(p.Content)
		} else {
			b.WriteString(NoContent)
		}
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}

// WriteMarkdown writes the Markdown document for pages to w.
func WriteMarkdown(w io.Writer, pages []models.PageResult) error {
	_, err := io.WriteString(w, RenderMarkdown(pages))
	return err
}

// WriteJSON writes pages to w as an indented JSON array.
func WriteJSON(w io.Writer, pages []models.PageResult) error {
	if pages == nil {
		pages = []models.PageResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(pages)
}

// Write serializes pages in format to w.
func Write(w io.Writer, format string, pages []models.PageResult) error {
	switch format {
	case "", FormatMarkdown:
		return WriteMarkdown(w, pages)
	case FormatJSON:
		return WriteJSON(w, pages)
	default:
		return &models.ConfigError{Field: "format", Message: fmt.Sprintf("unknown output format %q (want markdown or json)", format)}
	}
}

// Save writes pages to the file at path, creating parent directories as
// needed, and replaces any existing file.
func Save(path, format string, pages []models.PageResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := Write(bw, format, pages); err != nil {
		f.Close()
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", path, err)
	}
	return nil
}
