package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryKey(t *testing.T) {
	tests := []struct {
		name     string
		room     string
		channel  string
		expected string
	}{
		{"room and channel", "lobby", "general", "arqonbus:history:lobby:general"},
		{"wildcard when both empty", "", "", "arqonbus:history:*"},
		{"room only still keys on empty channel", "lobby", "", "arqonbus:history:lobby:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, historyKey(tt.room, tt.channel))
		})
	}
}

func TestIsBusyGroupErr(t *testing.T) {
	assert.True(t, isBusyGroupErr(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroupErr(errors.New("some other redis error")))
	assert.False(t, isBusyGroupErr(nil))
}
