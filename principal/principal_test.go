package principal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasRole(t *testing.T) {
	p := Principal{Subject: "u1", Roles: []string{"reader", "admin"}}
	assert.True(t, p.HasRole("admin"))
	assert.False(t, p.HasRole("root"))
	assert.False(t, Principal{}.HasRole(""))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "u1", Principal{Subject: "u1"}.DisplayName())
	assert.Equal(t, "Ana", Principal{Subject: "u1", Name: "Ana"}.DisplayName())
}
