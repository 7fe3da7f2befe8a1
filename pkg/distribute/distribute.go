// Package distribute writes enhanced copies of corpus files that carry
// "@name(context)" links to their most related documents.
package distribute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/wouteroostervld/contextmesh/pkg/document"
	"github.com/wouteroostervld/contextmesh/pkg/extract"
	"github.com/wouteroostervld/contextmesh/pkg/graph"
	"github.com/wouteroostervld/contextmesh/pkg/scanner"
	"github.com/wouteroostervld/contextmesh/pkg/store"
)

const (
	// EnhancedDir is created below the output directory
	EnhancedDir = "context-enhanced"

	// DefaultMaxReferences caps the links added to a single file
	DefaultMaxReferences = 7

	// SectionMarker opens every generated block
	SectionMarker = "<!-- Context Connections -->"

	minDescription = 20
)

var importLineRe = regexp.MustCompile(`^import\s+.*|^const\s+.*require|^from\s+`)

// Reference is a single generated link
type Reference struct {
	Name        string
	ID          string
	Description string
}

// Group holds the references to documents of one type
type Group struct {
	Type       document.Type
	References []Reference
}

// Header returns the markdown heading of the group
func (g Group) Header() string {
	t := string(g.Type)
	if t != "" {
		t = strings.ToUpper(t[:1]) + t[1:]
	}
	return "## Related " + t + " Files"
}

// Config holds distributor configuration
type Config struct {
	Store         store.GraphStore
	OutputDir     string
	MaxReferences int
}

// Result summarises a distribution run
type Result struct {
	Written    int
	Enhanced   int
	References int
}

// Distributor turns stored transition maps into enhanced file copies
type Distributor struct {
	store         store.GraphStore
	outputDir     string
	maxReferences int
}

// New creates a distributor
func New(cfg Config) (*Distributor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	if cfg.MaxReferences <= 0 {
		cfg.MaxReferences = DefaultMaxReferences
	}
	return &Distributor{
		store:         cfg.Store,
		outputDir:     cfg.OutputDir,
		maxReferences: cfg.MaxReferences,
	}, nil
}

// Dir returns the directory enhanced files are written to
func (d *Distributor) Dir() string {
	return filepath.Join(d.outputDir, EnhancedDir)
}

// Distribute writes an enhanced copy of every file. Files without a stored
// transition map are copied unchanged.
func (d *Distributor) Distribute(ctx context.Context, files []scanner.File) (Result, error) {
	g, err := d.store.LoadGraph(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load graph: %w", err)
	}

	var res Result
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		groups, err := d.groupsFor(ctx, g, f.RelPath)
		if err != nil {
			return res, err
		}

		content := f.Content
		if len(groups) > 0 {
			content = Enhance(f.Content, extract.TypeOf(f.RelPath), groups)
			res.Enhanced++
			for _, grp := range groups {
				res.References += len(grp.References)
			}
		}

		if err := d.write(f.RelPath, content); err != nil {
			return res, err
		}
		res.Written++
	}

	slog.Info("Context distributed",
		"dir", d.Dir(),
		"files", res.Written,
		"enhanced", res.Enhanced,
		"references", res.References)
	return res, nil
}

func (d *Distributor) groupsFor(ctx context.Context, g *graph.Graph, id string) ([]Group, error) {
	m, err := d.store.LoadTransitionMap(ctx, id)
	if errors.Is(err, store.ErrMapNotFound) {
		slog.Debug("No transition map for file", "id", id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transition map for %s: %w", id, err)
	}

	current := extract.TypeOf(id)
	if n, ok := g.Node(id); ok {
		current = n.Type
	}

	var groups []Group
	for _, t := range graph.TopN(m.Direct(), d.maxReferences) {
		summary := ""
		if n, ok := g.Node(t.ID); ok {
			summary = n.Summary
		}
		ref := Reference{
			Name:        extract.Stem(t.ID),
			ID:          t.ID,
			Description: Describe(current, t.Type, t.Concepts, summary),
		}

		i := slices.IndexFunc(groups, func(grp Group) bool { return grp.Type == t.Type })
		if i < 0 {
			groups = append(groups, Group{Type: t.Type})
			i = len(groups) - 1
		}
		groups[i].References = append(groups[i].References, ref)
	}
	return groups, nil
}

func (d *Distributor) write(relPath, content string) error {
	rel := filepath.FromSlash(relPath)
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("refusing to write outside %s: %s", d.Dir(), relPath)
	}
	path := filepath.Join(d.Dir(), rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	return nil
}

// Describe explains why a related document is worth following from a
// document of type current. concepts are the concepts both share.
func Describe(current, related document.Type, concepts []string, summary string) string {
	var desc string
	switch {
	case current == document.TypeRule && slices.Contains(concepts, "optimization"):
		desc = "Provides optimization strategies related to " + joinWithout(concepts, "optimization")
	case current == document.TypeRule && slices.Contains(concepts, "framework"):
		desc = "Establishes framework components for " + joinWithout(concepts, "framework")
	case current == document.TypeDocumentation && slices.Contains(concepts, "tutorial"):
		desc = "Tutorial covering " + joinWithout(concepts, "tutorial")
	case current == document.TypeSource && related == document.TypeSource:
		desc = "Related implementation for " + strings.Join(concepts, ", ")
	case current == document.TypeSource && related == document.TypeRule:
		desc = "Governance rules for implementing " + strings.Join(concepts, ", ")
	case current == document.TypeComponent && related == document.TypeComponent:
		desc = "Compatible component for " + strings.Join(concepts, ", ") + " integration"
	default:
		desc = "Related context for " + strings.Join(graph.TopN(concepts, 3), ", ")
	}

	if len(desc) < minDescription && summary != "" {
		desc = summary
	}
	return desc
}

func joinWithout(items []string, drop string) string {
	kept := make([]string, 0, len(items))
	for _, s := range items {
		if s != drop {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, ", ")
}

// Section renders the connection block for the given groups
func Section(groups []Group) string {
	var b strings.Builder
	b.WriteString(SectionMarker + "\n")
	for _, grp := range groups {
		if len(grp.References) == 0 {
			continue
		}
		b.WriteString("\n" + grp.Header() + "\n")
		for _, ref := range grp.References {
			fmt.Fprintf(&b, "@%s(%s)\n", ref.Name, ref.Description)
		}
	}
	return b.String()
}

// Enhance inserts the connection block into content. Rules and docs get
// it after their frontmatter, source files get it as a block comment after
// the last import, anything else gets it prepended.
func Enhance(content string, fileType document.Type, groups []Group) string {
	if len(groups) == 0 {
		return content
	}
	section := Section(groups)

	switch fileType {
	case document.TypeRule, document.TypeDocumentation:
		if !strings.HasPrefix(content, "---") {
			return section + "\n\n" + content
		}
		end := strings.Index(content[3:], "---")
		if end < 0 {
			return content + "\n\n" + section + "\n"
		}
		end += 3 + 3
		return content[:end] + "\n\n" + section + "\n\n" + strings.TrimLeft(content[end:], " \t\r\n")

	case document.TypeSource, document.TypeComponent:
		comment := " * " + strings.ReplaceAll(section, "\n", "\n * ")
		lines := strings.Split(content, "\n")
		last := -1
		for i, line := range lines {
			if importLineRe.MatchString(line) {
				last = i
			}
		}
		if last < 0 {
			return "/**\n * Context Connections\n" + comment + "\n */\n\n" + content
		}
		block := []string{"", "/**", " * Context Connections", comment, " */"}
		lines = slices.Insert(lines, last+1, block...)
		return strings.Join(lines, "\n")

	default:
		return section + "\n\n" + content
	}
}
