package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RemoveSelectors deletes every element matching one of selectors from
// rawHTML and returns the re-serialized document. Invalid selectors match
// nothing; unparsable input is returned unchanged.
func RemoveSelectors(rawHTML string, selectors []string) string {
	if len(selectors) == 0 {
		return rawHTML
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	removed := 0
	for _, sel := range selectors {
		matches := doc.Find(sel)
		removed += matches.Length()
		matches.Remove()
	}
	if removed == 0 {
		return rawHTML
	}

	out, err := doc.Html()
	if err != nil {
		return rawHTML
	}
	return out
}
