package onixcheck

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Document is the immutable in-memory representation of one ONIX input.
// It keeps both the parsed tree (for rule evaluation) and the raw bytes
// (for schema validation, which streams the original source). A Document
// belongs to a single pipeline run and is never mutated by stages.
type Document struct {
	raw  []byte
	tree *xmlquery.Node
	name string
}

// ParseDocument reads and parses an ONIX document from r. The name is used
// in findings and logs only; pass the file name when one exists.
func ParseDocument(r io.Reader, name string) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", name, err)
	}
	return ParseBytes(raw, name)
}

// ParseBytes parses an ONIX document from an in-memory buffer.
func ParseBytes(raw []byte, name string) (*Document, error) {
	tree, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing document %s: %w", name, err)
	}
	return &Document{raw: raw, tree: tree, name: name}, nil
}

// ParseFile parses an ONIX document from disk.
func ParseFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return ParseBytes(raw, path)
}

// Name returns the caller-supplied document name.
func (d *Document) Name() string {
	return d.name
}

// Reader returns a fresh reader over the original source bytes.
func (d *Document) Reader() io.Reader {
	return bytes.NewReader(d.raw)
}

// Tree returns the parsed document node for XPath evaluation.
func (d *Document) Tree() *xmlquery.Node {
	return d.tree
}

// Root returns the document's root element, or nil for an empty document.
func (d *Document) Root() *xmlquery.Node {
	for n := d.tree.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// Product is one <Product> record within a document, paired with the
// identifier used to key scores and retailer results.
type Product struct {
	Node *xmlquery.Node
	// ID is the product's ISBN-13 when one is present, otherwise the GTIN-13,
	// the record reference, or a positional fallback. Stable within a run.
	ID string
	// Index is the zero-based document-order position of the record.
	Index int
}

// Products returns every product record in the document, in document order.
// Both conventions are handled: reference documents carry <Product>
// children, short-tag documents <product>. Multi-product batch feeds are
// the normal case; every record is returned, never only the first.
func (d *Document) Products(nsctx NamespaceContext) []Product {
	root := d.Root()
	if root == nil {
		return nil
	}

	productTag := translateTag("Product", nsctx.Convention)
	var out []Product
	for n := root.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode {
			continue
		}
		if n.Data == productTag || n.Data == "Product" || n.Data == "product" {
			out = append(out, Product{
				Node:  n,
				ID:    productIdentifier(n, nsctx, len(out)),
				Index: len(out),
			})
		}
	}
	return out
}

// productIdentifier resolves the identifier reported for one product record.
// Preference order follows the original scoring rubric: ISBN-13 (List 5 code
// 15), then GTIN-13 (03), then the record reference, then a positional name.
func productIdentifier(product *xmlquery.Node, nsctx NamespaceContext, index int) string {
	for _, idType := range []string{"15", "03"} {
		if v := identifierOfType(product, nsctx, idType); v != "" {
			return v
		}
	}
	refTag := translateTag("RecordReference", nsctx.Convention)
	for n := product.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode && n.Data == refTag {
			if v := strings.TrimSpace(n.InnerText()); v != "" {
				return v
			}
		}
	}
	return "product-" + strconv.Itoa(index+1)
}

func identifierOfType(product *xmlquery.Node, nsctx NamespaceContext, idType string) string {
	identTag := translateTag("ProductIdentifier", nsctx.Convention)
	typeTag := translateTag("ProductIDType", nsctx.Convention)
	valueTag := translateTag("IDValue", nsctx.Convention)

	for n := product.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode || n.Data != identTag {
			continue
		}
		var gotType, gotValue string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xmlquery.ElementNode {
				continue
			}
			switch c.Data {
			case typeTag:
				gotType = strings.TrimSpace(c.InnerText())
			case valueTag:
				gotValue = strings.TrimSpace(c.InnerText())
			}
		}
		if gotType == idType && gotValue != "" {
			return gotValue
		}
	}
	return ""
}

// nodePath builds an XPath-like location for a node, with positional
// predicates so findings in multi-product documents stay unambiguous.
func nodePath(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	var segments []string
	for cur := n; cur != nil && cur.Type == xmlquery.ElementNode; cur = cur.Parent {
		idx := 1
		for sib := cur.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == xmlquery.ElementNode && sib.Data == cur.Data {
				idx++
			}
		}
		segments = append(segments, fmt.Sprintf("%s[%d]", cur.Data, idx))
	}
	if len(segments) == 0 {
		return ""
	}
	var b strings.Builder
	for i := len(segments) - 1; i >= 0; i-- {
		b.WriteString("/")
		b.WriteString(segments[i])
	}
	return b.String()
}
