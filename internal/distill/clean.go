package distill

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// junkPhrases are exact, lower-cased text blocks that get dropped
// wholesale by RemoveJunkTextBlocks.
var junkPhrases = map[string]struct{}{
	"advertisement":     {},
	"sponsored":         {},
	"promoted":          {},
	"related articles":  {},
	"recommended":       {},
	"you may like":      {},
	"newsletters":       {},
}

var emptyTagNames = map[string]struct{}{
	"div": {}, "span": {}, "section": {}, "article": {},
	"p": {}, "aside": {}, "header": {}, "footer": {},
}

var layoutTagNames = []string{"nav", "aside", "footer", "header", "menu"}
var deepPruneTagNames = map[string]struct{}{"div": {}, "span": {}, "section": {}}

// Clean runs the full twelve-step cleaning pipeline in order. It is
// idempotent: applying it to an already-cleaned document is a no-op.
func (d *Document) Clean() {
	d.RemoveScripts()
	d.RemoveCSS()
	d.RemoveIframes()
	d.RemoveSVG()
	d.RemoveJunkTextBlocks()
	d.RemoveAllClassesAndIDs()
	d.RemoveEmptyTags()
	d.AggressiveCleanup()
	d.KeepOnlyBody()
	d.RemoveLayoutTags()
	d.CollapseWrappers()
	d.DeepPruneEmpty()
}

// RemoveScripts deletes every <script> except
// type="application/ld+json".
func (d *Document) RemoveScripts() {
	d.doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if t, _ := sel.Attr("type"); t == "application/ld+json" {
			return
		}
		sel.Remove()
	})
}

// RemoveCSS deletes <style> elements and strips every element's style
// attribute.
func (d *Document) RemoveCSS() {
	d.doc.Find("style").Remove()
	d.doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		sel.RemoveAttr("style")
	})
}

// RemoveIframes deletes <iframe> elements.
func (d *Document) RemoveIframes() {
	d.doc.Find("iframe").Remove()
}

// RemoveSVG deletes <svg> subtrees.
func (d *Document) RemoveSVG() {
	d.doc.Find("svg").Remove()
}

// RemoveJunkTextBlocks deletes any element whose trimmed, lower-cased
// text exactly matches a known junk phrase.
func (d *Document) RemoveJunkTextBlocks() {
	d.doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		if _, junk := junkPhrases[text]; junk {
			sel.Remove()
		}
	})
}

// RemoveAllClassesAndIDs strips class and id attributes from every
// element.
func (d *Document) RemoveAllClassesAndIDs() {
	d.doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		sel.RemoveAttr("class")
		sel.RemoveAttr("id")
	})
}

// RemoveEmptyTags deletes any of {div,span,section,article,p,aside,
// header,footer} with no descendant element and no non-whitespace
// text.
func (d *Document) RemoveEmptyTags() {
	removeEmptyOnce(d.doc.Selection, emptyTagNames)
}

func removeEmptyOnce(root *goquery.Selection, names map[string]struct{}) bool {
	changed := false
	root.Find("*").Each(func(_ int, sel *goquery.Selection) {
		name := goquery.NodeName(sel)
		if _, ok := names[name]; !ok {
			return
		}
		if isEmptyElement(sel) {
			sel.Remove()
			changed = true
		}
	})
	return changed
}

func isEmptyElement(sel *goquery.Selection) bool {
	if sel.Children().Length() > 0 {
		return false
	}
	return strings.TrimSpace(sel.Text()) == ""
}

// AggressiveCleanup removes empty-valued attributes and drops
// whitespace-only text nodes.
func (d *Document) AggressiveCleanup() {
	d.doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		if node == nil {
			return
		}
		var keep []html.Attribute
		for _, a := range node.Attr {
			if strings.TrimSpace(a.Val) != "" {
				keep = append(keep, a)
			}
		}
		node.Attr = keep
	})

	removeWhitespaceTextNodes(d.doc.Selection.Nodes)
}

func removeWhitespaceTextNodes(nodes []*html.Node) {
	for _, n := range nodes {
		var next *html.Node
		for c := n.FirstChild; c != nil; c = next {
			next = c.NextSibling
			if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
				n.RemoveChild(c)
				continue
			}
			removeWhitespaceTextNodes([]*html.Node{c})
		}
	}
}

// KeepOnlyBody reparses the document using only the <body> subtree as
// the new root.
func (d *Document) KeepOnlyBody() {
	body := d.doc.Find("body").First()
	if body.Length() == 0 {
		return
	}
	inner, err := body.Html()
	if err != nil {
		return
	}
	reparsed, err := goquery.NewDocumentFromReader(strings.NewReader(inner))
	if err != nil {
		return
	}
	d.doc = reparsed
}

// RemoveLayoutTags deletes {nav,aside,footer,header,menu}.
func (d *Document) RemoveLayoutTags() {
	d.doc.Find(strings.Join(layoutTagNames, ",")).Remove()
}

// CollapseWrappers repeatedly replaces any <div> whose element-children
// count is exactly 1 with that single child, until a full pass makes no
// change.
func (d *Document) CollapseWrappers() {
	for {
		changed := false
		d.doc.Find("div").Each(func(_ int, sel *goquery.Selection) {
			children := sel.Children()
			if children.Length() != 1 {
				return
			}
			onlyChild := children.First()
			node := sel.Get(0)
			childNode := onlyChild.Get(0)
			if node == nil || childNode == nil || node.Parent == nil {
				return
			}
			parent := node.Parent
			node.RemoveChild(childNode)
			parent.InsertBefore(childNode, node)
			parent.RemoveChild(node)
			changed = true
		})
		if !changed {
			break
		}
	}
}

// DeepPruneEmpty repeatedly deletes any {div,span,section} with no
// descendant element and no non-whitespace text, to a fixed point.
func (d *Document) DeepPruneEmpty() {
	for removeEmptyOnce(d.doc.Selection, deepPruneTagNames) {
	}
}
