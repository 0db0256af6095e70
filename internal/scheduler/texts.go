package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/taskherd/taskherd/internal/domain"
)

// displayDate renders a stored YYYY-MM-DD date as DD.MM.YYYY for humans.
// A malformed or empty date is rendered as a dash.
func displayDate(d domain.Date) string {
	t := d.Time(time.UTC)
	if t.IsZero() {
		return "—"
	}
	return t.Format("02.01.2006")
}

// postponedSuffix annotates a task whose deadline was pushed back.
func postponedSuffix(task *domain.Task) string {
	if !task.Postponed {
		return ""
	}
	return fmt.Sprintf(" (postponed %s)", displayDate(task.Deadline))
}

// taskLine renders one task for list-style messages.
func taskLine(task *domain.Task) string {
	line := fmt.Sprintf("• <b>%s</b> — due %s%s (#%d)",
		task.Description, displayDate(task.Deadline), postponedSuffix(task), task.ID)
	if task.Link != "" {
		line += "\n  🔗 " + task.Link
	}
	return line
}

func followUpText(task *domain.Task) string {
	return fmt.Sprintf(
		"⏳ Three days in — how is this one going?\n\n🧩 <b>%s</b>\n📅 Deadline: %s%s\nID: #%d",
		task.Description, displayDate(task.Deadline), postponedSuffix(task), task.ID)
}

func dueTodayText(task *domain.Task) string {
	return fmt.Sprintf(
		"🔔 Due <b>today</b>:\n\n🧩 <b>%s</b>%s\nID: #%d",
		task.Description, postponedSuffix(task), task.ID)
}

func dueTomorrowText(task *domain.Task) string {
	return fmt.Sprintf(
		"🔔 Due <b>tomorrow</b> (%s):\n\n🧩 <b>%s</b>%s\nID: #%d",
		displayDate(task.Deadline), task.Description, postponedSuffix(task), task.ID)
}

func overdueText(task *domain.Task) string {
	return fmt.Sprintf(
		"⚠️ This task is <b>overdue</b> (was due %s):\n\n🧩 <b>%s</b>%s\nID: #%d",
		displayDate(task.Deadline), task.Description, postponedSuffix(task), task.ID)
}

func digestText(tasks []*domain.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗒 Your open tasks for today (%d):\n\n", len(tasks))
	for i, task := range tasks {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(taskLine(task))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// reminderActions builds the inline action payload attached to per-task
// reminders: close it out, or push the deadline.
func reminderActions(taskID int64) json.RawMessage {
	markup := map[string]any{
		"inline_keyboard": [][]map[string]string{{
			{"text": "✅ Done", "callback_data": fmt.Sprintf("done:%d", taskID)},
			{"text": "📅 Postpone", "callback_data": fmt.Sprintf("postpone:%d", taskID)},
		}},
	}
	encoded, err := json.Marshal(markup)
	if err != nil {
		return nil
	}
	return encoded
}
