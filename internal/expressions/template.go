package expressions

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// A parsed template is a flat list of segments: literal runs and ${path}
// references. Parsing once and resolving structurally (instead of
// regex-rewriting the string on every run) keeps resolution total: every
// byte of the input is owned by exactly one segment.
type segment struct {
	literal string   // literal text; empty for references
	raw     string   // the original "${path}" token, written back when unresolved
	path    []string // dot-split reference path; nil for literals
}

type template struct {
	segments []segment
	hasRefs  bool
}

// parseTemplate scans s for ${path} tokens. Malformed tokens (unclosed
// "${", empty "${}") are kept as literal text.
func parseTemplate(s string) template {
	var t template
	i := 0
	for i < len(s) {
		idx := strings.Index(s[i:], "${")
		if idx == -1 {
			t.segments = append(t.segments, segment{literal: s[i:]})
			break
		}
		if idx > 0 {
			t.segments = append(t.segments, segment{literal: s[i : i+idx]})
		}
		start := i + idx + 2 // skip "${"
		end := strings.IndexByte(s[start:], '}')
		if end == -1 {
			// Unclosed reference: the rest is literal.
			t.segments = append(t.segments, segment{literal: s[i+idx:]})
			break
		}
		end += start
		inner := s[start:end]
		if inner == "" {
			t.segments = append(t.segments, segment{literal: s[i+idx : end+1]})
		} else {
			t.segments = append(t.segments, segment{
				raw:  s[i+idx : end+1],
				path: strings.Split(inner, "."),
			})
			t.hasRefs = true
		}
		i = end + 1
	}
	return t
}

// Resolver rewrites task input templates by substituting ${path} references
// with values drawn from an execution context. Resolution is lenient: a
// reference whose path does not resolve is left in place verbatim, so
// agents see the unresolved token rather than an empty string.
// Thread-safe: parsed templates are cached and reused across runs.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]template
}

// NewResolver creates a new Resolver with an empty template cache.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string]template)}
}

// Resolve returns a copy of tmpl with every ${path} reference substituted
// from context. Maps and slices are rebuilt with resolved values (keys are
// never templated); any other type passes through unchanged. The input
// template and the context are never mutated.
func (r *Resolver) Resolve(tmpl any, context map[string]any) any {
	switch v := tmpl.(type) {
	case string:
		return r.resolveString(v, context)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = r.Resolve(val, context)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = r.Resolve(val, context)
		}
		return out
	default:
		return tmpl
	}
}

func (r *Resolver) resolveString(s string, context map[string]any) string {
	t := r.getOrParse(s)
	if !t.hasRefs {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, seg := range t.segments {
		if seg.path == nil {
			b.WriteString(seg.literal)
			continue
		}
		// Each occurrence performs its own lookup against the live context.
		val, ok := lookupPath(context, seg.path)
		if !ok {
			b.WriteString(seg.raw)
			continue
		}
		b.WriteString(stringify(val))
	}
	return b.String()
}

func (r *Resolver) getOrParse(s string) template {
	r.mu.RLock()
	if t, ok := r.cache[s]; ok {
		r.mu.RUnlock()
		return t
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.cache[s]; ok {
		return t
	}
	t := parseTemplate(s)
	r.cache[s] = t
	return t
}

// lookupPath navigates nested maps by successive keys. It reports no value
// when an intermediate is not a map, a key is absent, or the navigated
// value is nil.
func lookupPath(root map[string]any, path []string) (any, bool) {
	var current any = root
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

// stringify converts a resolved value into the string form embedded in the
// output. Strings pass through; complex types are JSON-encoded inline.
func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int, int64, float64:
		return fmt.Sprintf("%v", v)
	case json.RawMessage:
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// HasReferences reports whether s contains any well-formed ${path} token.
func HasReferences(s string) bool {
	return parseTemplate(s).hasRefs
}
