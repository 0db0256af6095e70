package service

import (
	"encoding/json"
	"fmt"

	"github.com/taskherd/taskherd/internal/domain"
)

// initialText formats the notification an assignee receives when a task is
// put into work.
func initialText(task *domain.Task) string {
	deadline := "—"
	if !task.Deadline.IsZero() {
		deadline = string(task.Deadline)
	}

	text := fmt.Sprintf(
		"New task for you:\n\n🧩 <b>%s</b>\n📅 Deadline: %s\n%s\nID: #%d",
		task.Description, deadline, priorityBlock(task.Priority), task.ID)
	if task.Link != "" {
		text += "\n🔗 " + task.Link
	}
	return text
}

// assignmentNotice formats the message the new assignee receives after a
// reassignment.
func assignmentNotice(task *domain.Task, actor string) string {
	deadline := "—"
	if !task.Deadline.IsZero() {
		deadline = string(task.Deadline)
	}
	who := actor
	if who == "" {
		who = "the coordinator"
	}
	return fmt.Sprintf(
		"This task is now on you (handed over by %s):\n\n🧩 <b>%s</b>\n📅 Deadline: %s\n%s\nID: #%d",
		who, task.Description, deadline, priorityBlock(task.Priority), task.ID)
}

// reassignedAwayNotice formats the message the previous assignee receives.
func reassignedAwayNotice(task *domain.Task) string {
	return fmt.Sprintf(
		"You are off the hook — this task moved to %s:\n\n🧩 <b>%s</b>\nID: #%d",
		task.Assignee, task.Description, task.ID)
}

// priorityBlock renders the priority line; high priority tasks carry an
// explicit warning that their deadline is fixed.
func priorityBlock(priority domain.TaskPriority) string {
	if priority == domain.PriorityHigh {
		return "🔥 Priority: high (deadline cannot be postponed)"
	}
	return "Priority: normal"
}

// taskActions builds the inline action payload attached to task
// notifications: take into work, or hand off.
func taskActions(taskID int64) json.RawMessage {
	markup := map[string]any{
		"inline_keyboard": [][]map[string]string{{
			{"text": "✅ Taking it", "callback_data": fmt.Sprintf("take:%d", taskID)},
			{"text": "🙅 Not my task", "callback_data": fmt.Sprintf("reassign:%d", taskID)},
		}},
	}
	encoded, err := json.Marshal(markup)
	if err != nil {
		return nil
	}
	return encoded
}
