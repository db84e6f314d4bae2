package cleaner

import (
	"fmt"
	"regexp"
	"strings"
)

// inlineLinkRe matches Markdown inline links: [text](url)
var inlineLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// ConvertToCitations rewrites inline Markdown links as numbered references
// listed after the text:
//
//	"See [Go](https://go.dev)" -> "See [Go][1]\n\nReferences:\n\n[1]: https://go.dev"
//
// Duplicate URLs reuse the same reference number. The reference block has no
// horizontal rule so it cannot be mistaken for a page separator.
func ConvertToCitations(markdown string) string {
	urlToNum := make(map[string]int)
	var refs []string

	result := inlineLinkRe.ReplaceAllStringFunc(markdown, func(match string) string {
		parts := inlineLinkRe.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		text, target := parts[1], parts[2]

		num, exists := urlToNum[target]
		if !exists {
			num = len(refs) + 1
			urlToNum[target] = num
			refs = append(refs, fmt.Sprintf("[%d]: %s", num, target))
		}
		return fmt.Sprintf("[%s][%d]", text, num)
	})

	if len(refs) == 0 {
		return markdown
	}
	return result + "\n\nReferences:\n\n" + strings.Join(refs, "\n")
}
