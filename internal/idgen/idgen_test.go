package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsVersion7(t *testing.T) {
	id, err := uuid.Parse(New())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestPrefixedIDs(t *testing.T) {
	run := RunID()
	assert.True(t, strings.HasPrefix(run, "run_"))
	assert.Len(t, run, len("run_")+32)
	assert.NotContains(t, run, "-")
	assert.True(t, strings.HasPrefix(RequestID(), "req_"))
	assert.NotEqual(t, RunID(), RunID())
}
