package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalStates(t *testing.T) {
	assert.Empty(t, AllowedTransitions(TaskStatusCancelled))
	assert.Equal(t, []TaskStatus{TaskStatusDisputed}, AllowedTransitions(TaskStatusCompleted))
}

func TestValidTaskStatus(t *testing.T) {
	for _, s := range []TaskStatus{
		TaskStatusOpen, TaskStatusAccepted, TaskStatusInProgress,
		TaskStatusCompleted, TaskStatusCancelled, TaskStatusDisputed,
	} {
		assert.True(t, ValidTaskStatus(s), string(s))
	}
	assert.False(t, ValidTaskStatus("archived"))
	assert.False(t, ValidTaskStatus(""))
}

func TestCanTransitionIsTableDriven(t *testing.T) {
	assert.True(t, CanTransition(TaskStatusOpen, TaskStatusInProgress))
	assert.False(t, CanTransition(TaskStatusOpen, TaskStatusOpen))
	assert.False(t, CanTransition("archived", TaskStatusOpen))
}
