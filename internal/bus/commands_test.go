package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

func TestArgString(t *testing.T) {
	args := envelope.Value{"room": "lobby", "count": 3}
	assert.Equal(t, "lobby", argString(args, "room"))
	assert.Equal(t, "", argString(args, "count"))
	assert.Equal(t, "", argString(args, "missing"))
}

func TestArgInt(t *testing.T) {
	args := envelope.Value{"limit": float64(25), "native": 7, "room": "lobby"}
	assert.Equal(t, 25, argInt(args, "limit", 50))
	assert.Equal(t, 7, argInt(args, "native", 50))
	assert.Equal(t, 50, argInt(args, "room", 50))
	assert.Equal(t, 50, argInt(args, "missing", 50))
}

func TestIsOmegaCommand(t *testing.T) {
	assert.True(t, isOmegaCommand("op.omega.predict"))
	assert.True(t, isOmegaCommand("op.omega.x"))
	assert.False(t, isOmegaCommand("op.casil.reload"))
	assert.False(t, isOmegaCommand(""))
	assert.False(t, isOmegaCommand("op.omega"))
}
