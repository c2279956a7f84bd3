package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "geko dev (commit unknown, built unknown)", String())

	orig := Version
	Version = "0.3.1"
	t.Cleanup(func() { Version = orig })
	assert.Contains(t, String(), "geko 0.3.1 ")
}
