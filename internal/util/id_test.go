package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	id := NewID("ses")
	assert.True(t, strings.HasPrefix(id, "ses_"))
	assert.Len(t, id, len("ses_")+32)

	bare := NewID("")
	assert.Len(t, bare, 32)
	assert.NotContains(t, bare, "_")

	assert.NotEqual(t, NewID("x"), NewID("x"))
}
