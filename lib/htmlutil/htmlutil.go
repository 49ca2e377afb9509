package htmlutil

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MetaContent returns the content attribute of <meta name="..."> in
// the document's head, or "" when the tag is absent.
func MetaContent(doc *goquery.Document, name string) string {
	sel := doc.Find(fmt.Sprintf("meta[name=%q]", name))
	return strings.TrimSpace(sel.AttrOr("content", ""))
}

// HiddenInput returns the value of <input name="..."> inside the
// selection, or "" when no such input exists.
func HiddenInput(form *goquery.Selection, name string) string {
	sel := form.Find(fmt.Sprintf("input[name=%q]", name))
	return sel.AttrOr("value", "")
}

// SubmitLabel returns the label of the selection's submit button,
// either the value attribute of <input type=submit> or the text of
// <button type=submit>.
func SubmitLabel(form *goquery.Selection) string {
	if v := form.Find("input[type=submit]").AttrOr("value", ""); v != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(form.Find("button[type=submit]").Text())
}
