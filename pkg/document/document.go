// Package document defines the records produced by feature extraction and
// consumed by the graph engine.
package document

// Type classifies a document by its role in the corpus
type Type string

const (
	TypeRule          Type = "rule"
	TypeDocumentation Type = "documentation"
	TypeSource        Type = "source"
	TypeComponent     Type = "component"
	TypeConfiguration Type = "configuration"
	TypeMarkup        Type = "markup"
	TypeStyle         Type = "style"
	TypeOther         Type = "other"
)

// Valid reports whether t is one of the known document types
func (t Type) Valid() bool {
	switch t {
	case TypeRule, TypeDocumentation, TypeSource, TypeComponent,
		TypeConfiguration, TypeMarkup, TypeStyle, TypeOther:
		return true
	}
	return false
}

// Concept is a vocabulary term and the number of times it occurs in a document
type Concept struct {
	Name       string `json:"name"`
	Importance int    `json:"importance"`
}

// Reference is an existing @name(context) link found in a document
type Reference struct {
	Name    string `json:"name"`
	Context string `json:"context"`
}

// Document is the structured summary of a single corpus file.
// Nil slices are treated as empty collections everywhere.
type Document struct {
	ID                 string      `json:"id"`
	Title              string      `json:"title"`
	Type               Type        `json:"type"`
	Concepts           []Concept   `json:"concepts,omitempty"`
	Keywords           []string    `json:"keywords,omitempty"`
	Summary            string      `json:"summary"`
	ExistingReferences []Reference `json:"existingReferences,omitempty"`
}

// ConceptNames returns the concept names in their ranked order
func (d Document) ConceptNames() []string {
	names := make([]string, 0, len(d.Concepts))
	for _, c := range d.Concepts {
		names = append(names, c.Name)
	}
	return names
}
