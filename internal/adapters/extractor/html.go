package extractor

import (
	"bytes"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
)

// noise is removed before conversion; none of it carries document text.
const noise = "script, style, noscript, iframe, svg, nav"

// extractHTML converts the document body to markdown so headings survive as
// "##" section breaks for the splitter. A <title> missing from the body is
// prepended as a top-level heading.
func extractHTML(fileName string, data []byte) ([]entities.Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	doc.Find(noise).Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	converter := md.NewConverter("", true, nil)
	markdown := converter.Convert(body)

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" && !strings.Contains(markdown, title) {
		markdown = "# " + title + "\n\n" + markdown
	}

	return []entities.Page{{
		FileName:   fileName,
		FileType:   "text/html",
		PageNumber: 1,
		Text:       markdown,
	}}, nil
}
