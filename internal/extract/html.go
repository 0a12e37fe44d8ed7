package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const droppedHTMLElements = "script, style, noscript, template, svg, iframe, nav, footer"

// HTMLText returns the readable text of an HTML document. The first article
// or main element wins over the whole body.
func HTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	return selectionText(doc.Selection), nil
}

func selectionText(root *goquery.Selection) string {
	root.Find(droppedHTMLElements).Remove()

	content := root.Find("article").First()
	if content.Length() == 0 {
		content = root.Find("main").First()
	}
	if content.Length() == 0 {
		content = root.Find("body").First()
	}
	if content.Length() == 0 {
		content = root
	}

	content.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})
	content.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr, blockquote, pre").
		Each(func(_ int, block *goquery.Selection) {
			block.AppendHtml("\n")
		})

	return normalizeText(strings.TrimSpace(content.Text()))
}

// htmlFragmentText is HTMLText for snippets such as feed item bodies.
func htmlFragmentText(fragment string) string {
	text, err := HTMLText(strings.NewReader(fragment))
	if err != nil {
		return normalizeText(fragment)
	}

	return text
}
