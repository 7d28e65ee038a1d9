package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "qbdeploy unknown", String())

	oldV, oldC, oldT := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldT })

	Version, GitCommit, BuildTime = "v1.2.0", "abc123", "2026-01-02"
	assert.Equal(t, "qbdeploy v1.2.0 (abc123, built 2026-01-02)", String())
}
