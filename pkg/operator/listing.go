package operator

import (
	"sort"
	"strings"
)

// BuildListing turns a flat, unordered set of stored entries into the
// listing for prefix.
//
// Flat key/value backends (mem, badger) have no native delimiter support the
// way S3 does, so they collect every entry under the prefix and let this
// helper do what S3's Delimiter="/" does server-side: for a non-recursive
// listing, keys nested more than one level below the prefix collapse into a
// single synthesized directory entry per immediate child.
//
// The prefix itself is never part of the result. Entries are returned in
// lexicographic key order.
func BuildListing(prefix string, recursive bool, all []*Metadata) []*Metadata {
	out := make([]*Metadata, 0, len(all))
	seenDirs := make(map[string]bool)

	for _, m := range all {
		if !strings.HasPrefix(m.Key, prefix) || m.Key == prefix {
			continue
		}
		rest := m.Key[len(prefix):]

		if recursive {
			out = append(out, m)
			continue
		}

		if i := strings.Index(rest, "/"); i >= 0 && i < len(rest)-1 {
			// Deeper entry: collapse into the immediate child directory.
			child := prefix + rest[:i+1]
			if !seenDirs[child] {
				seenDirs[child] = true
				out = append(out, &Metadata{Key: child, IsDir: true})
			}
			continue
		}

		// Immediate child (object, or directory marker ending in "/").
		if m.IsDir && seenDirs[m.Key] {
			continue
		}
		if m.IsDir {
			seenDirs[m.Key] = true
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// HasChildren reports whether any key in keys is nested under prefix.
// Backends use it to synthesize directory stats for prefixes that have no
// marker object of their own.
func HasChildren(prefix string, keys []string) bool {
	for _, k := range keys {
		if k != prefix && strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// DirKey normalizes key into directory form: a trailing slash, except for
// the root key which stays empty.
func DirKey(key string) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}
