package onixcheck

// Official ONIX 3.x namespace URIs published by EDItEUR.
const (
	ReferenceNamespaceURI = "http://ns.editeur.org/onix/3.0/reference"
	ShortNamespaceURI     = "http://ns.editeur.org/onix/3.0/short"
)

// onixPrefix is the prefix bound to the detected namespace when rewriting
// namespace-neutral rule expressions.
const onixPrefix = "onix"

// Convention identifies which of the two interchangeable ONIX tag
// conventions a document uses.
type Convention string

const (
	// ConventionReference is the CamelCase tag convention (<ONIXMessage>).
	ConventionReference Convention = "reference"

	// ConventionShort is the terse tag convention (<ONIXmessage>).
	ConventionShort Convention = "short"

	// ConventionNone marks un-namespaced documents whose shape gives no
	// signal either way. Stages proceed with unqualified paths.
	ConventionNone Convention = "none"
)

// String returns the string representation of the Convention.
func (c Convention) String() string {
	return string(c)
}

// NamespaceContext is derived once per document and shared read-only by all
// downstream stages. URI is empty for legacy documents that declare no
// namespace, even when the convention could be guessed from tag spelling.
type NamespaceContext struct {
	Convention Convention `json:"convention"`
	URI        string     `json:"uri,omitempty"`
	Version    string     `json:"version,omitempty"`
}

// Namespaced reports whether XPath evaluation must bind an ONIX prefix.
func (nc NamespaceContext) Namespaced() bool {
	return nc.URI != ""
}

// Bindings returns the prefix map used to compile XPath expressions under
// this context. Nil for un-namespaced documents.
func (nc NamespaceContext) Bindings() map[string]string {
	if !nc.Namespaced() {
		return nil
	}
	return map[string]string{onixPrefix: nc.URI}
}

// DetectNamespace resolves the tag convention and version of a parsed
// document. The declared namespace of the root element is authoritative;
// root tag spelling is consulted only when no namespace is declared, as a
// best-effort signal for legacy documents. Detection never fails: documents
// matching neither known namespace keep an empty URI, and the resolver
// emits a single info finding for them so callers can tell a legacy
// document apart from a recognized one.
func DetectNamespace(doc *Document) (NamespaceContext, []Finding) {
	root := doc.Root()
	if root == nil {
		return NamespaceContext{Convention: ConventionNone}, []Finding{{
			Stage:    StageResolver,
			Severity: SeverityInfo,
			Message:  "document has no root element; proceeding without a namespace context",
		}}
	}

	version := root.SelectAttr("release")

	switch root.NamespaceURI {
	case ReferenceNamespaceURI:
		return NamespaceContext{Convention: ConventionReference, URI: ReferenceNamespaceURI, Version: version}, nil
	case ShortNamespaceURI:
		return NamespaceContext{Convention: ConventionShort, URI: ShortNamespaceURI, Version: version}, nil
	}

	// No recognized namespace. Tag spelling still hints at the convention
	// the author had in mind: reference tags are CamelCase, short tags are
	// lowercase after the leading ONIX. The guess informs reporting only;
	// with no URI, paths stay unqualified either way.
	ctx := NamespaceContext{Convention: ConventionNone, Version: version}
	switch root.Data {
	case "ONIXMessage", "ONIX":
		ctx.Convention = ConventionReference
	case "ONIXmessage":
		ctx.Convention = ConventionShort
	}

	return ctx, []Finding{{
		Stage:    StageResolver,
		Severity: SeverityInfo,
		Message:  "no ONIX 3.x namespace declared; validating with unqualified paths (legacy/demo compatibility mode)",
		Location: Location{Path: "/" + root.Data},
	}}
}
