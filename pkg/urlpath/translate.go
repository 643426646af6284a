// Package urlpath translates storage URLs into dispatch targets.
//
// A storage URL has the form scheme://host/path?key=value&... where the
// scheme selects the backend family, the host names the backend's top-level
// namespace (bucket, container, root directory), the path becomes the object
// key and the query parameters become string-typed config overrides.
//
// Translation is a pure function: no I/O, no schema validation (schema
// validation belongs to the registry), no registry lookups. It either
// produces a fully resolved Target or fails with ErrInvalidPath.
package urlpath

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/stratofs/stratofs/pkg/operator"
)

// Target is the result of translating one URL: everything the registry and
// dispatcher need to bind the operation to a backend.
type Target struct {
	// Scheme selects the backend family ("s3", "mem", "file", "badger").
	Scheme string

	// Root is the backend-specific top-level namespace taken from the URL
	// host. The registry maps it onto the scheme's root config key
	// (bucket, container, root) unless an override supplies one.
	Root string

	// Key is the normalized object key: no leading slash, ".." resolved,
	// percent-decoding applied. A trailing slash marks a directory key;
	// the empty key addresses the backend root.
	Key string

	// Config holds string-typed configuration overrides merged from the
	// URL query parameters and caller-supplied overrides, with caller
	// overrides taking precedence.
	Config map[string]string
}

// Translate parses rawURL and merges overrides into the resulting target
// config. Caller overrides take precedence over query parameters; scheme
// defaults are applied later, during registry validation.
//
// Fails with operator.ErrInvalidPath when the scheme is empty, the URL does
// not parse, or the resolved key contains a control character.
func Translate(rawURL string, overrides map[string]string) (*Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", rawURL, operator.ErrInvalidPath)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("%q has no scheme: %w", rawURL, operator.ErrInvalidPath)
	}

	key, err := NormalizeKey(u.Path)
	if err != nil {
		return nil, err
	}

	config := make(map[string]string)
	for name, values := range u.Query() {
		if len(values) == 0 {
			config[name] = ""
			continue
		}
		config[name] = values[0]
	}
	for name, value := range overrides {
		config[name] = value
	}

	return &Target{
		Scheme: u.Scheme,
		Root:   u.Host,
		Key:    key,
		Config: config,
	}, nil
}

// NormalizeKey turns a URL path into a backend key: leading slashes removed,
// "." and ".." segments resolved against the root (they can never escape
// it), and the directory-marking trailing slash preserved. An empty or
// root-only path normalizes to "".
func NormalizeKey(p string) (string, error) {
	for _, r := range p {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("key contains control character %q: %w", r, operator.ErrInvalidPath)
		}
	}

	isDir := strings.HasSuffix(p, "/")

	// Cleaning a rooted path clamps ".." at the root instead of letting
	// the key escape it.
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return "", nil
	}

	key := cleaned[1:]
	if isDir {
		key += "/"
	}
	return key, nil
}

// Format re-serializes a (scheme, root, key) triple back into a storage URL.
// Together with Translate it round-trips the key: query ordering is not
// preserved, the path is.
func Format(scheme, root, key string) string {
	u := url.URL{Scheme: scheme, Host: root, Path: "/" + key}
	return u.String()
}
