package guard

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/taskerin/taskerin-backend/internal/models"
)

func TestOwnershipPredicates(t *testing.T) {
	owner := uuid.New()
	assignee := uuid.New()
	stranger := uuid.New()

	assigned := &models.Task{OwnerID: owner, AssigneeID: &assignee, Status: models.TaskStatusInProgress}
	unassigned := &models.Task{OwnerID: owner, Status: models.TaskStatusOpen}

	assert.True(t, IsOwner(assigned, owner))
	assert.False(t, IsOwner(assigned, assignee))

	assert.True(t, IsAssignee(assigned, assignee))
	assert.False(t, IsAssignee(assigned, owner))
	assert.False(t, IsAssignee(unassigned, assignee))

	assert.True(t, IsParticipant(assigned, owner))
	assert.True(t, IsParticipant(assigned, assignee))
	assert.False(t, IsParticipant(assigned, stranger))
}

func TestCanModify(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()

	cases := []struct {
		name   string
		status models.TaskStatus
		actor  uuid.UUID
		want   bool
	}{
		{"owner on open task", models.TaskStatusOpen, owner, true},
		{"owner on in_progress task", models.TaskStatusInProgress, owner, false},
		{"owner on completed task", models.TaskStatusCompleted, owner, false},
		{"stranger on open task", models.TaskStatusOpen, other, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := &models.Task{OwnerID: owner, Status: tc.status}
			assert.Equal(t, tc.want, CanModify(task, tc.actor))
		})
	}
}

func TestCanTransition(t *testing.T) {
	owner := uuid.New()
	assignee := uuid.New()
	stranger := uuid.New()

	task := &models.Task{OwnerID: owner, AssigneeID: &assignee, Status: models.TaskStatusInProgress}

	assert.True(t, CanTransition(task, owner, models.TaskStatusCompleted))
	assert.True(t, CanTransition(task, assignee, models.TaskStatusDisputed))
	assert.False(t, CanTransition(task, stranger, models.TaskStatusCompleted))
	assert.False(t, CanTransition(task, owner, models.TaskStatusOpen))

	terminal := &models.Task{OwnerID: owner, Status: models.TaskStatusCancelled}
	assert.False(t, CanTransition(terminal, owner, models.TaskStatusOpen))
	assert.False(t, CanTransition(terminal, owner, models.TaskStatusInProgress))
}
