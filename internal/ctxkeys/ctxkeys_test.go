package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunID(t *testing.T) {
	ctx := context.Background()

	_, ok := RunID(ctx)
	assert.False(t, ok)

	_, ok = RunID(WithRunID(ctx, ""))
	assert.False(t, ok, "empty ids are treated as unset")

	id, ok := RunID(WithRunID(ctx, "run-1"))
	assert.True(t, ok)
	assert.Equal(t, "run-1", id)
}

func TestCommand(t *testing.T) {
	ctx := WithCommand(WithRunID(context.Background(), "run-1"), "copy")

	cmd, ok := Command(ctx)
	assert.True(t, ok)
	assert.Equal(t, "copy", cmd)

	id, _ := RunID(ctx)
	assert.Equal(t, "run-1", id)
}
