// Package guard holds the pure authorization predicates checked before
// every mutating task operation. No I/O happens here.
package guard

import (
	"github.com/google/uuid"

	"github.com/taskerin/taskerin-backend/internal/models"
)

func IsOwner(task *models.Task, userID uuid.UUID) bool {
	return task != nil && task.OwnerID == userID
}

func IsAssignee(task *models.Task, userID uuid.UUID) bool {
	return task != nil && task.AssigneeID != nil && *task.AssigneeID == userID
}

func IsParticipant(task *models.Task, userID uuid.UUID) bool {
	return IsOwner(task, userID) || IsAssignee(task, userID)
}

// CanModify allows edits only while the task is still open.
func CanModify(task *models.Task, userID uuid.UUID) bool {
	return IsOwner(task, userID) && task.Status == models.TaskStatusOpen
}

func CanTransition(task *models.Task, userID uuid.UUID, target models.TaskStatus) bool {
	if !IsParticipant(task, userID) {
		return false
	}
	return models.CanTransition(task.Status, target)
}
