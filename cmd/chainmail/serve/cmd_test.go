package serve

import (
	"testing"

	"github.com/andrebq/chainmail/principal"
	"github.com/stretchr/testify/assert"
)

func TestParseToken(t *testing.T) {
	p, tk, err := parseToken("bob=abc")
	assert.NoError(t, err)
	assert.Equal(t, principal.Principal{Subject: "bob"}, p)
	assert.Equal(t, "abc", tk)

	p, tk, err = parseToken("root:admin,ops=x=y")
	assert.NoError(t, err)
	assert.Equal(t, principal.Principal{Subject: "root", Roles: []string{"admin", "ops"}}, p)
	assert.Equal(t, "x=y", tk, "tokens may carry base64 padding")

	for _, bad := range []string{"", "bob", "=abc", "bob=", ":admin=abc"} {
		_, _, err = parseToken(bad)
		assert.Error(t, err, "entry %q", bad)
	}
}
