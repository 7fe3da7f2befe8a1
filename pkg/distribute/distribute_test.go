package distribute

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wouteroostervld/contextmesh/pkg/document"
	"github.com/wouteroostervld/contextmesh/pkg/graph"
	"github.com/wouteroostervld/contextmesh/pkg/scanner"
	"github.com/wouteroostervld/contextmesh/pkg/store/jsonfs"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		current  document.Type
		related  document.Type
		concepts []string
		summary  string
		want     string
	}{
		{"rule optimization", document.TypeRule, document.TypeSource, []string{"cache", "optimization"}, "", "Provides optimization strategies related to cache"},
		{"rule framework", document.TypeRule, document.TypeRule, []string{"framework", "design"}, "", "Establishes framework components for design"},
		{"source to source", document.TypeSource, document.TypeSource, []string{"error", "handler"}, "", "Related implementation for error, handler"},
		{"source to rule", document.TypeSource, document.TypeRule, []string{"testing"}, "", "Governance rules for implementing testing"},
		{"component to component", document.TypeComponent, document.TypeComponent, []string{"design"}, "", "Compatible component for design integration"},
		{"default keeps three concepts", document.TypeOther, document.TypeRule, []string{"a", "b", "c", "d"}, "", "Related context for a, b, c"},
		{"short description uses summary", document.TypeDocumentation, document.TypeRule, []string{"tutorial"}, "Walkthrough of the api", "Walkthrough of the api"},
		{"short description without summary", document.TypeDocumentation, document.TypeRule, []string{"tutorial"}, "", "Tutorial covering "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.current, tt.related, tt.concepts, tt.summary))
		})
	}
}

var sampleGroups = []Group{
	{Type: document.TypeRule, References: []Reference{{Name: "style", Description: "Related context for design"}}},
	{Type: document.TypeSource, References: []Reference{{Name: "cache", Description: "Related context for cache"}}},
}

func TestSection(t *testing.T) {
	want := "<!-- Context Connections -->\n" +
		"\n## Related Rule Files\n@style(Related context for design)\n" +
		"\n## Related Source Files\n@cache(Related context for cache)\n"
	assert.Equal(t, want, Section(sampleGroups))
}

func TestEnhance(t *testing.T) {
	section := Section(sampleGroups)
	comment := " * " + strings.ReplaceAll(section, "\n", "\n * ")

	tests := []struct {
		name     string
		content  string
		fileType document.Type
		want     string
	}{
		{
			name:     "after frontmatter",
			content:  "---\ndescription: x\n---\n\n# Title\n",
			fileType: document.TypeRule,
			want:     "---\ndescription: x\n---\n\n" + section + "\n\n# Title\n",
		},
		{
			name:     "unterminated frontmatter appends",
			content:  "---\nbroken",
			fileType: document.TypeDocumentation,
			want:     "---\nbroken\n\n" + section + "\n",
		},
		{
			name:     "doc without frontmatter prepends",
			content:  "# Doc\n",
			fileType: document.TypeDocumentation,
			want:     section + "\n\n# Doc\n",
		},
		{
			name:     "source after last import",
			content:  "import a from 'a'\nimport b from 'b'\n\nexport const x = 1\n",
			fileType: document.TypeSource,
			want:     "import a from 'a'\nimport b from 'b'\n\n/**\n * Context Connections\n" + comment + "\n */\n\nexport const x = 1\n",
		},
		{
			name:     "source without imports",
			content:  "export const x = 1\n",
			fileType: document.TypeComponent,
			want:     "/**\n * Context Connections\n" + comment + "\n */\n\nexport const x = 1\n",
		},
		{
			name:     "other prepends",
			content:  "{}",
			fileType: document.TypeConfiguration,
			want:     section + "\n\n{}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Enhance(tt.content, tt.fileType, sampleGroups))
		})
	}

	assert.Equal(t, "unchanged", Enhance("unchanged", document.TypeRule, nil))
}

func TestDistribute(t *testing.T) {
	ctx := context.Background()
	out := t.TempDir()
	st, err := jsonfs.Open(filepath.Join(out, "graph"))
	require.NoError(t, err)

	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: "docs/guide.md", Title: "Guide", Type: document.TypeDocumentation, Summary: "How the cache works"},
			{ID: "rules/style.mdc", Title: "Style", Type: document.TypeRule},
			{ID: "src/cache.ts", Title: "Cache", Type: document.TypeSource},
			{ID: "docs/other.md", Title: "Other", Type: document.TypeDocumentation},
		},
		Edges: []graph.Edge{
			{Source: "docs/guide.md", Target: "rules/style.mdc", Similarity: 0.4, Concepts: []string{"design"}},
			{Source: "docs/guide.md", Target: "src/cache.ts", Similarity: 0.7, Concepts: []string{"cache"}},
			{Source: "docs/guide.md", Target: "docs/other.md", Similarity: 0.2, Concepts: []string{"cache"}},
		},
	}
	require.NoError(t, st.SaveGraph(ctx, g))
	require.NoError(t, st.SaveTransitionMaps(ctx, graph.TransitionMaps(g, graph.DefaultSettings())))

	d, err := New(Config{Store: st, OutputDir: out, MaxReferences: 2})
	require.NoError(t, err)

	files := []scanner.File{
		{RelPath: "docs/guide.md", Content: "# Guide\n"},
		{RelPath: "notes/untracked.md", Content: "# Untracked\n"},
	}
	res, err := d.Distribute(ctx, files)
	require.NoError(t, err)
	assert.Equal(t, Result{Written: 2, Enhanced: 1, References: 2}, res)

	data, err := os.ReadFile(filepath.Join(d.Dir(), "docs", "guide.md"))
	require.NoError(t, err)
	want := "<!-- Context Connections -->\n" +
		"\n## Related Source Files\n@cache(Related context for cache)\n" +
		"\n## Related Rule Files\n@style(Related context for design)\n" +
		"\n\n# Guide\n"
	assert.Equal(t, want, string(data))

	data, err = os.ReadFile(filepath.Join(d.Dir(), "notes", "untracked.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Untracked\n", string(data))
}

func TestDistributeRejectsEscapingPaths(t *testing.T) {
	ctx := context.Background()
	out := t.TempDir()
	st, err := jsonfs.Open(filepath.Join(out, "graph"))
	require.NoError(t, err)
	require.NoError(t, st.SaveGraph(ctx, &graph.Graph{}))

	d, err := New(Config{Store: st, OutputDir: out})
	require.NoError(t, err)
	_, err = d.Distribute(ctx, []scanner.File{{RelPath: "../escape.md", Content: "x"}})
	assert.Error(t, err)
}
