// Package extract turns scanned files into the structured documents the
// graph engine consumes: title, concepts, keywords, summary, type and any
// existing @name(context) references.
package extract

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/wouteroostervld/contextmesh/pkg/document"
	"github.com/wouteroostervld/contextmesh/pkg/scanner"
)

// Limits applied to extracted features
const (
	MaxConcepts      = 10
	MaxKeywords      = 20
	MaxSummaryLength = 200
	minKeywordLength = 4
	minDescription   = 20
)

// DefaultVocabulary is the fixed set of domain concepts searched for
var DefaultVocabulary = []string{
	"development", "design", "engineering", "testing", "deployment", "maintenance",
	"mode", "framework", "ecosystem", "governance", "sovereignty", "knowledge",
	"tool", "call", "optimization", "error", "handler", "context", "prompt",
	"search", "cache", "workflow", "horizon", "documentation", "implementation",
	"integration", "distributed", "computation", "tagging", "reference",
}

var stopwords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true,
	"have": true, "will": true, "should": true,
}

var typeByExt = map[string]document.Type{
	".md":   document.TypeDocumentation,
	".mdc":  document.TypeRule,
	".js":   document.TypeSource,
	".ts":   document.TypeSource,
	".jsx":  document.TypeComponent,
	".tsx":  document.TypeComponent,
	".html": document.TypeMarkup,
	".css":  document.TypeStyle,
	".json": document.TypeConfiguration,
}

var (
	headingRe     = regexp.MustCompile(`(?:^|\n)(?:# |## )(.*?)(?:\n|$)`)
	classRe       = regexp.MustCompile(`class\s+(\w+)`)
	functionRe    = regexp.MustCompile(`function\s+(\w+)`)
	descriptionRe = regexp.MustCompile(`description:\s*["']?(.*?)["']?(?:\n|$)`)
	paragraphRe   = regexp.MustCompile(`\n\s*\n`)
	markupRe      = regexp.MustCompile("[#*`_]")
	linkRe        = regexp.MustCompile(`\[(.*?)\]\(.*?\)`)
	referenceRe   = regexp.MustCompile(`@(\w+)\(([^)]*)\)`)
	nonWordRe     = regexp.MustCompile(`\W+`)
)

// Extractor derives documents from file content
type Extractor struct {
	vocabulary []string
	patterns   []*regexp.Regexp
}

// New creates an extractor over the given vocabulary. A nil vocabulary uses
// DefaultVocabulary.
func New(vocabulary []string) *Extractor {
	if vocabulary == nil {
		vocabulary = DefaultVocabulary
	}
	e := &Extractor{vocabulary: vocabulary}
	for _, term := range vocabulary {
		e.patterns = append(e.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(term)+`\b`))
	}
	return e
}

// Vocabulary returns the concept terms in their canonical order
func (e *Extractor) Vocabulary() []string {
	return e.vocabulary
}

// Document extracts the features of a single file
func (e *Extractor) Document(f scanner.File) document.Document {
	return document.Document{
		ID:                 f.RelPath,
		Title:              Title(f.RelPath, f.Content),
		Type:               TypeOf(f.RelPath),
		Concepts:           e.Concepts(f.Content),
		Keywords:           Keywords(f.Content),
		Summary:            Summary(f.Content),
		ExistingReferences: References(f.Content),
	}
}

// Documents extracts every file in order
func (e *Extractor) Documents(files []scanner.File) []document.Document {
	docs := make([]document.Document, 0, len(files))
	for _, f := range files {
		docs = append(docs, e.Document(f))
	}
	return docs
}

// TypeOf classifies a file by extension
func TypeOf(path string) document.Type {
	if t, ok := typeByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return document.TypeOther
}

// Title uses the first heading of markdown files, the first class or
// function name of scripts and the file stem otherwise.
func Title(path, content string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".mdc":
		if m := headingRe.FindStringSubmatch(content); m != nil {
			return m[1]
		}
	case ".js", ".ts", ".jsx", ".tsx":
		if m := classRe.FindStringSubmatch(content); m != nil {
			return m[1]
		}
		if m := functionRe.FindStringSubmatch(content); m != nil {
			return m[1]
		}
	}
	return Stem(path)
}

// Stem returns the base name without extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Concepts counts whole-word vocabulary matches and returns the top terms
// by count. Equal counts keep vocabulary order.
func (e *Extractor) Concepts(content string) []document.Concept {
	var concepts []document.Concept
	for i, re := range e.patterns {
		if n := len(re.FindAllStringIndex(content, -1)); n > 0 {
			concepts = append(concepts, document.Concept{Name: e.vocabulary[i], Importance: n})
		}
	}
	slices.SortStableFunc(concepts, func(a, b document.Concept) int {
		return b.Importance - a.Importance
	})
	if len(concepts) > MaxConcepts {
		concepts = concepts[:MaxConcepts]
	}
	return concepts
}

// Keywords returns the most frequent lower-cased words longer than three
// characters. Equal counts keep first-appearance order.
func Keywords(content string) []string {
	counts := make(map[string]int)
	var order []string
	for _, word := range nonWordRe.Split(strings.ToLower(content), -1) {
		if len(word) < minKeywordLength || stopwords[word] {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}
	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})
	if len(order) > MaxKeywords {
		order = order[:MaxKeywords]
	}
	return order
}

// Summary prefers a frontmatter description of at least 20 characters and
// falls back to the first prose paragraph with markdown removed.
func Summary(content string) string {
	summary := ""
	if m := descriptionRe.FindStringSubmatch(content); m != nil {
		summary = m[1]
	}

	if len(summary) < minDescription {
		for _, para := range paragraphRe.Split(content, -1) {
			if strings.TrimSpace(para) == "" ||
				strings.Contains(para, "---") ||
				strings.HasPrefix(para, "```") ||
				strings.HasPrefix(para, "import ") ||
				strings.HasPrefix(para, "const ") ||
				strings.HasPrefix(para, "function ") {
				continue
			}
			para = markupRe.ReplaceAllString(para, "")
			summary = strings.TrimSpace(linkRe.ReplaceAllString(para, "$1"))
			break
		}
	}

	return truncate(summary, MaxSummaryLength)
}

// truncate shortens s to limit runes, ending in "..."
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

// References finds existing @name(context) links
func References(content string) []document.Reference {
	var refs []document.Reference
	for _, m := range referenceRe.FindAllStringSubmatch(content, -1) {
		refs = append(refs, document.Reference{Name: m[1], Context: m[2]})
	}
	return refs
}
