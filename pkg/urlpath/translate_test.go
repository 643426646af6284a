package urlpath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratofs/stratofs/pkg/operator"
	"github.com/stratofs/stratofs/pkg/urlpath"
)

func TestTranslate_Basic(t *testing.T) {
	target, err := urlpath.Translate("s3://my-bucket/path/to/file.txt", nil)
	require.NoError(t, err)

	assert.Equal(t, "s3", target.Scheme)
	assert.Equal(t, "my-bucket", target.Root)
	assert.Equal(t, "path/to/file.txt", target.Key)
	assert.Empty(t, target.Config)
}

func TestTranslate_QueryParameters(t *testing.T) {
	target, err := urlpath.Translate("s3://bkt/f.txt?region=eu-west-1&endpoint=http%3A%2F%2Flocalhost%3A9000", nil)
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", target.Config["region"])
	assert.Equal(t, "http://localhost:9000", target.Config["endpoint"])
}

func TestTranslate_OverridesWinOverQuery(t *testing.T) {
	target, err := urlpath.Translate("s3://bkt/f.txt?region=eu-west-1", map[string]string{
		"region": "us-east-2",
	})
	require.NoError(t, err)

	assert.Equal(t, "us-east-2", target.Config["region"])
}

func TestTranslate_NoScheme(t *testing.T) {
	_, err := urlpath.Translate("/just/a/path", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrInvalidPath)
}

func TestTranslate_DirectoryKey(t *testing.T) {
	target, err := urlpath.Translate("mem://ns/some/dir/", nil)
	require.NoError(t, err)
	assert.Equal(t, "some/dir/", target.Key)
}

func TestTranslate_RootKey(t *testing.T) {
	for _, raw := range []string{"mem://ns", "mem://ns/", "s3://bucket"} {
		target, err := urlpath.Translate(raw, nil)
		require.NoError(t, err, raw)
		assert.Equal(t, "", target.Key, raw)
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "a/b/c.txt", "a/b/c.txt"},
		{"leading slash", "/a/b.txt", "a/b.txt"},
		{"double slashes", "a//b.txt", "a/b.txt"},
		{"dot segments", "a/./b.txt", "a/b.txt"},
		{"parent segments resolve", "a/b/../c.txt", "a/c.txt"},
		{"parent clamped at root", "../../etc/passwd", "etc/passwd"},
		{"trailing slash preserved", "a/b/", "a/b/"},
		{"root", "/", ""},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := urlpath.NormalizeKey(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeKey_ControlCharacters(t *testing.T) {
	for _, in := range []string{"a\x00b", "a\nb", "tab\tseparated"} {
		_, err := urlpath.NormalizeKey(in)
		require.Error(t, err, "%q", in)
		assert.ErrorIs(t, err, operator.ErrInvalidPath)
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	urls := []string{
		"s3://bucket/a/b/c.txt",
		"file://data/nested/file.bin",
		"mem://ns/dir/",
		"badger://db/key",
	}

	for _, raw := range urls {
		target, err := urlpath.Translate(raw, nil)
		require.NoError(t, err, raw)

		back, err := urlpath.Translate(urlpath.Format(target.Scheme, target.Root, target.Key), nil)
		require.NoError(t, err, raw)

		assert.Equal(t, target.Scheme, back.Scheme, raw)
		assert.Equal(t, target.Root, back.Root, raw)
		assert.Equal(t, target.Key, back.Key, raw)
	}
}
