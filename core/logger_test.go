package core

import (
	"testing"

	"github.com/mongodb/grip/logging"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/send"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGripLogger_WritesFields verifies structured fields reach the grip sender
// Given: a GripLogger over a journaler backed by an in-memory sender
// When: Info is called with two fields
// Then: the sender receives one message carrying the text and both fields
func TestGripLogger_WritesFields(t *testing.T) {
	// Arrange
	sender := send.MakeInternalLogger()
	logger := NewGripLogger(logging.MakeGrip(sender))

	// Act
	logger.Info("pool started", F("pool", "io"), F("threads", 4))

	// Assert
	require.True(t, sender.HasMessage())
	msg, ok := sender.GetMessageSafe()
	require.True(t, ok)
	assert.Contains(t, msg.Rendered, "pool started")

	fields, ok := msg.Message.Raw().(message.Fields)
	require.True(t, ok)
	assert.Equal(t, "io", fields["pool"])
	assert.Equal(t, 4, fields["threads"])
}

// TestNoOpLogger_Discards verifies the no-op logger accepts every level
func TestNoOpLogger_Discards(t *testing.T) {
	logger := NewNoOpLogger()
	assert.NotPanics(t, func() {
		logger.Debug("d")
		logger.Info("i", F("k", 1))
		logger.Warn("w")
		logger.Error("e")
	})
}
