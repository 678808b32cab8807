package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID_ReturnsValidUUIDString(t *testing.T) {
	id := NewID()
	assert.NotEmpty(t, id)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestNewID_ReturnsUniqueValues(t *testing.T) {
	seen := make(map[string]bool, 100)
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.False(t, seen[id], "duplicate ID generated: %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 100)
}

func TestIsID(t *testing.T) {
	assert.True(t, IsID(NewID()))
	assert.True(t, IsID("6f1c2a52-0d4b-4c39-9a57-2f0e5d6c7b11"))

	assert.False(t, IsID(""))
	assert.False(t, IsID("not-an-id"))
	assert.False(t, IsID("{6f1c2a52-0d4b-4c39-9a57-2f0e5d6c7b11}"))
	assert.False(t, IsID("urn:uuid:6f1c2a52-0d4b-4c39-9a57-2f0e5d6c7b11"))
	assert.False(t, IsID("../../etc/passwd"))
}
