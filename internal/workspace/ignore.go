package workspace

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"
	"sync"
)

// Ignore matches slash-separated relative paths against gitignore-style
// patterns. Later patterns win, so a "!" pattern can re-include a path.
type Ignore struct {
	mu    sync.RWMutex
	rules []ignoreRule
}

type ignoreRule struct {
	re       *regexp.Regexp
	negate   bool
	dirOnly  bool
	anchored bool
	// base limits the rule to paths under a directory, for nested .gitignore files.
	base string
}

// NewIgnore returns a matcher holding patterns.
func NewIgnore(patterns ...string) *Ignore {
	m := &Ignore{}
	for _, p := range patterns {
		m.Add(p, "")
	}
	return m
}

// Add compiles one pattern. Blank lines and comments are skipped.
func (m *Ignore) Add(pattern, base string) {
	pattern = strings.TrimRight(pattern, " \t\r")
	pattern = strings.TrimLeft(pattern, " \t")
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	r := ignoreRule{base: strings.Trim(base, "/")}
	switch {
	case strings.HasPrefix(pattern, `\#`), strings.HasPrefix(pattern, `\!`):
		pattern = pattern[1:]
	case strings.HasPrefix(pattern, "!"):
		r.negate = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimRight(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimLeft(pattern, "/")
	} else if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		// "doc/frotz" is relative to the base, never "**/doc/frotz".
		r.anchored = true
	}
	if pattern == "" {
		return
	}

	re, err := regexp.Compile("^" + globToRegexp(pattern) + "$")
	if err != nil {
		return
	}
	r.re = re

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// AddFile adds every pattern of a .gitignore file, relative to base.
func (m *Ignore) AddFile(file, base string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.Add(sc.Text(), base)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read ignore file: %w", err)
	}
	return nil
}

// Match reports whether rel is ignored. A path inside an ignored directory
// is ignored too.
func (m *Ignore) Match(rel string, isDir bool) bool {
	rel = strings.Trim(path.Clean("/"+rel), "/")
	if rel == "" {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, r := range m.rules {
		if r.matches(rel, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (r ignoreRule) matches(rel string, isDir bool) bool {
	if r.base != "" {
		if !strings.HasPrefix(rel, r.base+"/") {
			return false
		}
		rel = strings.TrimPrefix(rel, r.base+"/")
	}

	parts := strings.Split(rel, "/")
	last := len(parts) - 1
	for i := range parts {
		// Every component but the last is a directory.
		dir := i < last || isDir
		if r.dirOnly && !dir {
			continue
		}
		candidate := parts[i]
		if r.anchored {
			candidate = strings.Join(parts[:i+1], "/")
		}
		if r.re.MatchString(candidate) {
			return true
		}
	}
	return false
}

// globToRegexp translates gitignore glob syntax. "*" and "?" stop at "/",
// "**/" spans directories and a trailing "**" matches everything below.
func globToRegexp(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' && (i == 0 || glob[i-1] == '/') {
				if i+2 < len(glob) && glob[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 2
					continue
				}
				if i+2 == len(glob) {
					b.WriteString(".*")
					i++
					continue
				}
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(glob[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := glob[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		case '\\':
			if i+1 < len(glob) {
				i++
				b.WriteString(regexp.QuoteMeta(string(glob[i])))
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
