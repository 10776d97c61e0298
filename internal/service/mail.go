package service

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"uptrack/internal/model"
	"uptrack/internal/notify"
)

func supervisorLink(frontendURL, todoID, email string) string {
	link := fmt.Sprintf("%s/supervisor/todos/%s", frontendURL, url.PathEscape(todoID))
	if email != "" {
		link += "?email=" + url.QueryEscape(email)
	}
	return link
}

func assignmentMessage(frontendURL string, todo *model.Todo) notify.Message {
	to := *todo.AssignedTo
	link := supervisorLink(frontendURL, todo.ID, to)
	title := html.EscapeString(todo.Title)
	return notify.Message{
		To:      to,
		Subject: "You have been assigned a todo",
		Text:    fmt.Sprintf("You have been assigned a new task: %s. View it here: %s", todo.Title, link),
		HTML: fmt.Sprintf(`<p>You have been assigned a new task: <strong>%s</strong>.</p>
<p><a href="%s">View it here</a></p>`, title, html.EscapeString(link)),
	}
}

func commentMessage(frontendURL string, todo *model.Todo, author, text string) notify.Message {
	link := supervisorLink(frontendURL, todo.ID, "")
	return notify.Message{
		Subject: "New comment on your todo",
		Text:    fmt.Sprintf("%s commented on your todo: %q\n\nComment: %s\n\nView todo: %s", author, todo.Title, text, link),
		HTML: fmt.Sprintf(`<p><strong>%s</strong> commented on your todo: "%s"</p>
<p>Comment: %s</p>
<p>View todo: <a href="%s">%s</a></p>`,
			html.EscapeString(author), html.EscapeString(todo.Title), html.EscapeString(text),
			html.EscapeString(link), html.EscapeString(link)),
	}
}

func completionMessage(todo *model.Todo, by string, at time.Time) notify.Message {
	return notify.Message{
		Subject: "Todo marked as complete",
		Text:    fmt.Sprintf("Your todo %q has been marked as complete by %s.\nCompleted at: %s", todo.Title, by, at.Format(time.RFC1123)),
		HTML: fmt.Sprintf(`<p>Your todo "<strong>%s</strong>" has been marked as complete by %s.</p>
<p>Completed at: %s</p>`, html.EscapeString(todo.Title), html.EscapeString(by), at.Format(time.RFC1123)),
	}
}

func verificationMessage(frontendURL, to, token string) notify.Message {
	link := fmt.Sprintf("%s/verify-email/%s", frontendURL, url.PathEscape(token))
	return notify.Message{
		To:      to,
		Subject: "Email Verification",
		Text:    "Please open the link below to verify your email:\n" + link,
		HTML: fmt.Sprintf(`<h2>Email Verification</h2>
<p>Please click the link below to verify your email:</p>
<p><a href="%s">Verify Email</a></p>`, html.EscapeString(link)),
	}
}

func digestMessage(frontendURL string, user model.User, todos []model.Todo, now time.Time) notify.Message {
	var text, body strings.Builder
	fmt.Fprintf(&text, "Todos that need attention on %s:\n\n", now.Format("2006-01-02"))
	body.WriteString("<h2>Todos that need attention</h2>\n<ul>\n")

	for _, todo := range todos {
		due := todo.DueDate.In(now.Location())
		status := "due " + due.Format("2006-01-02 15:04")
		if now.After(due) {
			status = "overdue since " + due.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&text, "- %s (%s, %s priority)\n", strings.TrimSpace(todo.Title), status, todo.Priority)
		fmt.Fprintf(&body, "<li><strong>%s</strong> <i>(%s, %s priority)</i></li>\n",
			html.EscapeString(strings.TrimSpace(todo.Title)), status, todo.Priority)
	}

	body.WriteString("</ul>\n")
	fmt.Fprintf(&body, `<p><a href="%s">Open Uptrack</a></p>`, html.EscapeString(frontendURL))
	fmt.Fprintf(&text, "\nOpen Uptrack: %s\n", frontendURL)

	return notify.Message{
		To:      user.Email,
		Subject: fmt.Sprintf("Uptrack: %d todo(s) due soon", len(todos)),
		Text:    text.String(),
		HTML:    body.String(),
	}
}
