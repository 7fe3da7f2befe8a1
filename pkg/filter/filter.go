// Package filter decides which directories and files take part in a scan.
package filter

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// Options configures a Filter
type Options struct {
	// Exclude holds directory names, glob patterns or path fragments to skip.
	Exclude []string
	// Blacklist rejects files whose absolute path matches any regex.
	Blacklist []string
	// Whitelist re-admits blacklisted files.
	Whitelist []string
	// Extensions restricts files to these suffixes. Empty admits every file.
	Extensions []string
	// IncludeHidden disables skipping of dot-directories.
	IncludeHidden bool
}

// Filter is a compiled set of scan rules
type Filter struct {
	exclude       []string
	blacklist     []*regexp.Regexp
	whitelist     []*regexp.Regexp
	extensions    []string
	includeHidden bool
}

// New compiles the given options. Invalid regexes are an error.
func New(opts Options) (*Filter, error) {
	f := &Filter{
		exclude:       opts.Exclude,
		includeHidden: opts.IncludeHidden,
	}
	var err error
	if f.blacklist, err = compile(opts.Blacklist); err != nil {
		return nil, fmt.Errorf("invalid blacklist: %w", err)
	}
	if f.whitelist, err = compile(opts.Whitelist); err != nil {
		return nil, fmt.Errorf("invalid whitelist: %w", err)
	}
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions = append(f.extensions, ext)
	}
	return f, nil
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// SkipDir reports whether a directory should not be descended into.
// node_modules is always skipped, dot-directories unless IncludeHidden is set.
func (f *Filter) SkipDir(path string) bool {
	base := filepath.Base(path)
	if base == "node_modules" {
		return true
	}
	if !f.includeHidden && strings.HasPrefix(base, ".") && base != "." && base != ".." {
		return true
	}

	clean := filepath.Clean(path)
	sep := string(filepath.Separator)
	for _, pattern := range f.exclude {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
		pattern = filepath.Clean(pattern)
		if clean == pattern ||
			strings.HasPrefix(clean, pattern+sep) ||
			strings.Contains(clean, sep+pattern+sep) ||
			strings.HasSuffix(clean, sep+pattern) {
			return true
		}
	}
	return false
}

// AllowFile reports whether a file passes the extension allow-list and the
// blacklist, where a whitelist match overrides a blacklist match.
func (f *Filter) AllowFile(path string) bool {
	if len(f.extensions) > 0 && !slices.Contains(f.extensions, strings.ToLower(filepath.Ext(path))) {
		return false
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	blocked := ""
	for _, re := range f.blacklist {
		if re.MatchString(abs) {
			blocked = re.String()
			break
		}
	}
	if blocked == "" {
		return true
	}

	for _, re := range f.whitelist {
		if re.MatchString(abs) {
			slog.Debug("Whitelist exception matched", "path", abs, "pattern", re.String())
			return true
		}
	}

	slog.Debug("Rejecting file", "path", abs, "blacklist_pattern", blocked)
	return false
}
