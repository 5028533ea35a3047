package noteid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate_ValidAndDistinct(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := Generate()
		assert.True(t, Validate(id), "generated id must be valid: %q", id)
		assert.Len(t, id, 36)
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %q", id)
		seen[id] = struct{}{}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"test123", true},
		{"custom-ttl", true},
		{"a_b-C9", true},
		{"550e8400-e29b-41d4-a716-446655440000", true},
		{"", false},
		{"..", false},
		{"../etc/passwd", false},
		{"a/b", false},
		{`a\b`, false},
		{"a.b", false},
		{"invalid@id!", false},
		{"with space", false},
		{"ünïcode", false},
		{"id\x00", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Validate(c.id), "Validate(%q)", c.id)
	}

	long := make([]byte, MaxLen+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.True(t, Validate(string(long[:MaxLen])))
	assert.False(t, Validate(string(long)))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "etcpasswd", Sanitize("../etc/passwd"))
	assert.Equal(t, "ab", Sanitize(`a\b`))
	assert.Equal(t, "abc-_1", Sanitize("abc-_1"))
	assert.Equal(t, "", Sanitize("../../"))
}

func TestFingerprint_StableAndOpaque(t *testing.T) {
	id := Generate()
	fp := Fingerprint(id)
	assert.Len(t, fp, 12)
	assert.Equal(t, fp, Fingerprint(id))
	assert.NotContains(t, id, fp)
	assert.NotEqual(t, fp, Fingerprint(Generate()))
}
