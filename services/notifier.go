package services

import (
	"context"
	"fmt"
	"html"

	"taxforms-api/models"
	"taxforms-api/utils"
)

// StatusChange describes an application status update for notification.
type StatusChange struct {
	Application models.Application
	Previous    models.ApplicationStatus
	Email       string
	FullName    string
	Notes       string
}

// Notifier tells applicants their application status changed.
type Notifier interface {
	StatusChanged(ctx context.Context, change StatusChange) error
}

// MailSender is satisfied by *config.Mailer.
type MailSender interface {
	Configured() bool
	SendMail(to []string, subject, html string) error
}

// MailNotifier sends status changes by email. It does nothing when SMTP
// is not configured.
type MailNotifier struct {
	mailer MailSender
}

func NewMailNotifier(mailer MailSender) *MailNotifier {
	return &MailNotifier{mailer: mailer}
}

func (n *MailNotifier) StatusChanged(ctx context.Context, change StatusChange) error {
	if n.mailer == nil || !n.mailer.Configured() || change.Email == "" {
		return nil
	}

	formName := "your application"
	if change.Application.FormType != nil {
		formName = "your " + change.Application.FormType.Name + " application"
	}
	label := utils.StatusLabel(change.Application.Status)
	subject := fmt.Sprintf("Update on %s: %s", formName, label)

	greeting := "Hello"
	if change.FullName != "" {
		greeting = "Hello " + html.EscapeString(change.FullName)
	}
	body := fmt.Sprintf("<p>%s,</p><p>The status of %s (reference %s) is now <strong>%s</strong>.</p>",
		greeting, html.EscapeString(formName), html.EscapeString(change.Application.ID), html.EscapeString(label))
	if change.Notes != "" {
		body += "<p>Notes from our team:</p><blockquote>" + html.EscapeString(change.Notes) + "</blockquote>"
	}

	return n.mailer.SendMail([]string{change.Email}, subject, body)
}

type NoopNotifier struct{}

func (NoopNotifier) StatusChanged(context.Context, StatusChange) error { return nil }
