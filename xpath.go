package onixcheck

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Rule sources are authored namespace-neutral, against reference tag names.
// RewriteExpr adapts one expression to the active namespace context in two
// steps: element name tests are translated to the document's tag convention
// (reference names pass through, short-tag documents get the code names),
// then qualified with the bound ONIX prefix when the document declares a
// namespace. Attributes, functions, axes, operators, literals, and already
// prefixed names are left untouched, so a single rule file serves both
// conventions unmodified.
func RewriteExpr(expr string, nsctx NamespaceContext) string {
	if !nsctx.Namespaced() && nsctx.Convention != ConventionShort {
		return expr
	}

	var b strings.Builder
	b.Grow(len(expr) + len(expr)/2)

	prevOperand := false
	attrName := false
	i := 0
	for i < len(expr) {
		c := expr[i]

		// String literals pass through verbatim.
		if c == '\'' || c == '"' {
			quote := c
			j := i + 1
			for j < len(expr) && expr[j] != quote {
				j++
			}
			if j < len(expr) {
				j++
			}
			b.WriteString(expr[i:j])
			i = j
			prevOperand = true
			attrName = false
			continue
		}

		if isNameStart(c) {
			j := i
			for j < len(expr) && isNameChar(expr[j]) {
				j++
			}
			token := expr[i:j]
			if attrName {
				// Attribute name test: never translated, never prefixed.
				b.WriteString(token)
			} else {
				b.WriteString(rewriteToken(token, expr[j:], prevOperand, nsctx))
			}
			i = j
			prevOperand = true
			attrName = false
			continue
		}

		switch c {
		case '@':
			prevOperand = false
			attrName = true
		case ')', ']', '.', '*':
			prevOperand = true
			attrName = false
		case ' ', '\t', '\n':
			// whitespace keeps the operand and attribute states
		default:
			prevOperand = false
			attrName = false
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// rewriteToken decides whether one identifier is an element name test and,
// if so, returns its convention-specific, prefix-qualified spelling.
func rewriteToken(token, rest string, prevOperand bool, nsctx NamespaceContext) string {
	trimmed := strings.TrimLeft(rest, " \t\n")

	// Function call or node-type test: text(), not(), count(), ...
	if strings.HasPrefix(trimmed, "(") {
		return token
	}

	// Axis-qualified step: the axis passes through, the name test after it
	// is rewritten like any other. The attribute axis names attributes, so
	// the whole step passes through.
	if sep := strings.Index(token, "::"); sep >= 0 {
		axis, name := token[:sep+2], token[sep+2:]
		if axis == "attribute::" || name == "" || strings.Contains(name, ":") {
			return token
		}
		name = translateTag(name, nsctx.Convention)
		if nsctx.Namespaced() {
			return axis + onixPrefix + ":" + name
		}
		return axis + name
	}

	// Already qualified: the author opted out of neutrality.
	if strings.Contains(token, ":") {
		return token
	}
	// Binary operator keywords only occur after a complete operand.
	if prevOperand {
		switch token {
		case "and", "or", "mod", "div":
			return token
		}
	}

	name := translateTag(token, nsctx.Convention)
	if nsctx.Namespaced() {
		return onixPrefix + ":" + name
	}
	return name
}

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9' || c == '-' || c == '.' || c == ':'
}

// Expr is a namespace-adapted, compiled rule expression.
type Expr struct {
	source    string // expression as authored
	rewritten string // expression after convention translation
	expr      *xpath.Expr
}

var exprCache = struct {
	sync.RWMutex
	m map[string]*xpath.Expr
}{m: make(map[string]*xpath.Expr)}

// CompileExpr rewrites and compiles a namespace-neutral expression for the
// given context. Compiled expressions are cached process-wide keyed by the
// rewritten form and namespace URI, so batch runs over documents of the
// same convention compile each rule once.
func CompileExpr(source string, nsctx NamespaceContext) (*Expr, error) {
	rewritten := RewriteExpr(source, nsctx)
	key := nsctx.URI + "\x00" + rewritten

	exprCache.RLock()
	cached := exprCache.m[key]
	exprCache.RUnlock()
	if cached != nil {
		return &Expr{source: source, rewritten: rewritten, expr: cached}, nil
	}

	var (
		expr *xpath.Expr
		err  error
	)
	if bindings := nsctx.Bindings(); bindings != nil {
		expr, err = xpath.CompileWithNS(rewritten, bindings)
	} else {
		expr, err = xpath.Compile(rewritten)
	}
	if err != nil {
		return nil, fmt.Errorf("compiling expression %q: %w", source, err)
	}

	exprCache.Lock()
	exprCache.m[key] = expr
	exprCache.Unlock()

	return &Expr{source: source, rewritten: rewritten, expr: expr}, nil
}

// Select returns the nodes matched by the expression under n, in document
// order.
func (c *Expr) Select(n *xmlquery.Node) []*xmlquery.Node {
	return xmlquery.QuerySelectorAll(n, c.expr)
}

// Truthy evaluates the expression relative to n and folds the result to a
// boolean the way XPath's boolean() does: node sets are true when
// non-empty, strings when non-blank, numbers when non-zero and not NaN.
func (c *Expr) Truthy(n *xmlquery.Node) bool {
	res := c.expr.Evaluate(xmlquery.CreateXPathNavigator(n))
	switch v := res.(type) {
	case bool:
		return v
	case float64:
		return v != 0 && !math.IsNaN(v)
	case string:
		return strings.TrimSpace(v) != ""
	case *xpath.NodeIterator:
		return v.MoveNext()
	default:
		return false
	}
}

// hasNonEmptyValue reports whether the expression matches at least one node
// under n whose text content is more than whitespace. Used by the scorers,
// where a present-but-blank field counts as absent.
func (c *Expr) hasNonEmptyValue(n *xmlquery.Node) bool {
	for _, match := range c.Select(n) {
		if strings.TrimSpace(match.InnerText()) != "" {
			return true
		}
	}
	return false
}
