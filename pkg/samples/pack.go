// ABOUTME: Sound pack description mapping every key to a sample URL
// ABOUTME: A pack is a base URL, a file extension and the keys it covers
package samples

import (
	"fmt"
	"net/url"
	"strings"
)

// Pack is a named set of samples laid out as URL + note + Ext
type Pack struct {
	Name string
	URL  string
	Ext  string
	Keys []string
}

// Normalize ensures URL ends with a slash and Ext starts with a dot
func (p Pack) Normalize() Pack {
	if p.URL != "" && !strings.HasSuffix(p.URL, "/") {
		p.URL += "/"
	}
	if p.Ext != "" && !strings.HasPrefix(p.Ext, ".") {
		p.Ext = "." + p.Ext
	}
	return p
}

// Locators maps each key to its sample location. Relative pack URLs are
// resolved against base, which may be empty for local directories.
func (p Pack) Locators(base string) (map[string]string, error) {
	p = p.Normalize()
	prefix := p.URL
	if !isAbsolute(prefix) && base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid sound base %q: %w", base, err)
		}
		rel, err := url.Parse(prefix)
		if err != nil {
			return nil, fmt.Errorf("invalid pack url %q: %w", prefix, err)
		}
		prefix = b.ResolveReference(rel).String()
	}

	out := make(map[string]string, len(p.Keys))
	for _, key := range p.Keys {
		out[key] = prefix + key + p.Ext
	}
	return out, nil
}

func isAbsolute(u string) bool {
	return strings.HasPrefix(u, "http://") ||
		strings.HasPrefix(u, "https://") ||
		strings.HasPrefix(u, "file://")
}
