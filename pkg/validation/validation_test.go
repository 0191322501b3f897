package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRoomID(t *testing.T) {
	assert.NoError(t, ValidateRoomID("room-1"))
	assert.NoError(t, ValidateRoomID("Team_Standup_2026"))

	assert.Error(t, ValidateRoomID(""))
	assert.Error(t, ValidateRoomID("   "))
	assert.Error(t, ValidateRoomID("room 1"))
	assert.Error(t, ValidateRoomID("room/1"))
	assert.Error(t, ValidateRoomID(strings.Repeat("a", 101)))
}

func TestValidateConnectionID(t *testing.T) {
	assert.NoError(t, ValidateConnectionID("abc-123_XYZ"))

	assert.Error(t, ValidateConnectionID(""))
	assert.Error(t, ValidateConnectionID("id with spaces"))
	assert.Error(t, ValidateConnectionID(strings.Repeat("x", 101)))
}

func TestValidateDisplayName(t *testing.T) {
	assert.NoError(t, ValidateDisplayName("Alice"))
	assert.NoError(t, ValidateDisplayName("Алиса"))

	assert.Error(t, ValidateDisplayName(""))
	assert.Error(t, ValidateDisplayName(strings.Repeat("a", 65)))
}

func TestValidateChatBody(t *testing.T) {
	assert.NoError(t, ValidateChatBody("hello"))

	assert.Error(t, ValidateChatBody(""))
	assert.Error(t, ValidateChatBody("   "))
	assert.Error(t, ValidateChatBody(strings.Repeat("a", 2001)))
}
