package cleaner

import (
	"errors"
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pruneScoreThreshold is the minimum weighted score a block element must reach
// to be kept. Blocks at or below it are treated as boilerplate.
const pruneScoreThreshold = 0.0

// Signal weights for the block scorer.
const (
	wTextDensity   = 3.0
	wLinkDensity   = -2.0
	wTagWeight     = 1.5
	wClassIDWeight = 1.0
	wTextLength    = 0.5
)

// positiveClassIDPatterns are substrings in class/id attributes that indicate
// main content areas.
var positiveClassIDPatterns = []string{
	"content", "article", "post", "entry", "body", "main", "text",
}

// negativeClassIDPatterns are substrings in class/id attributes that indicate
// boilerplate.
var negativeClassIDPatterns = []string{
	"sidebar", "ad", "widget", "nav", "menu", "comment", "footer",
	"header", "banner", "popup", "modal", "cookie", "social", "share",
	"related", "recommend", "promo",
}

var errNoContentBlocks = errors.New("pruning: no block passed the score threshold")

// PruningStrategy keeps the top-level <body> blocks that look like content
// (text density, link density, semantic tags, class/id hints) and returns
// their text, one paragraph per line group.
type PruningStrategy struct{}

func (PruningStrategy) Name() string { return "pruning" }

func (PruningStrategy) Extract(rawHTML, _ string) (string, error) {
	blocks, err := PruneBlocks(rawHTML)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if text := NormalizeParagraphs(b.Text()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// PruneBlocks scores every direct child of <body> and returns the ones above
// the threshold in document order. Script, style and noscript elements are
// removed before scoring.
func PruneBlocks(rawHTML string) ([]*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, noscript, template").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		return nil, errNoContentBlocks
	}

	var retained []*goquery.Selection
	body.Children().Each(func(_ int, el *goquery.Selection) {
		if scoreElement(el) > pruneScoreThreshold {
			retained = append(retained, el)
		}
	})
	if len(retained) == 0 {
		return nil, errNoContentBlocks
	}
	return retained, nil
}

// scoreElement computes a weighted score for a DOM element.
func scoreElement(el *goquery.Selection) float64 {
	fullHTML, err := goquery.OuterHtml(el)
	if err != nil {
		return 0
	}

	text := strings.TrimSpace(el.Text())
	textLen := len(text)
	if textLen == 0 {
		return 0
	}

	textDensity := 0.0
	if totalLen := len(fullHTML); totalLen > 0 {
		textDensity = float64(textLen) / float64(totalLen)
	}

	linkTextLen := 0
	el.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkTextLen += len(strings.TrimSpace(a.Text()))
	})
	linkDensity := float64(linkTextLen) / float64(textLen)

	return textDensity*wTextDensity +
		linkDensity*wLinkDensity +
		tagWeight(el)*wTagWeight +
		classIDWeight(el)*wClassIDWeight +
		math.Log10(float64(textLen)+1)*wTextLength
}

// tagWeight returns a bonus for semantic content tags and a penalty for
// known boilerplate tags.
func tagWeight(el *goquery.Selection) float64 {
	switch goquery.NodeName(el) {
	case "article", "main", "section":
		return 5.0
	case "nav", "footer", "aside", "header":
		return -5.0
	default:
		return 0.0
	}
}

// classIDWeight scans class and id for content/boilerplate hints, counting
// each direction at most once.
func classIDWeight(el *goquery.Selection) float64 {
	class, _ := el.Attr("class")
	id, _ := el.Attr("id")
	combined := strings.ToLower(class + " " + id)

	score := 0.0
	for _, pat := range positiveClassIDPatterns {
		if strings.Contains(combined, pat) {
			score += 3.0
			break
		}
	}
	for _, pat := range negativeClassIDPatterns {
		if strings.Contains(combined, pat) {
			score -= 3.0
			break
		}
	}
	return score
}
