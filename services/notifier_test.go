package services

import (
	"context"
	"testing"

	"taxforms-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	configured bool
	to         []string
	subject    string
	body       string
}

func (m *fakeMailer) Configured() bool { return m.configured }

func (m *fakeMailer) SendMail(to []string, subject, html string) error {
	m.to, m.subject, m.body = to, subject, html
	return nil
}

func TestMailNotifierSendsStatusChange(t *testing.T) {
	mailer := &fakeMailer{configured: true}
	n := NewMailNotifier(mailer)

	err := n.StatusChanged(context.Background(), StatusChange{
		Application: models.Application{ID: "app-1", Status: models.StatusInReview, FormType: &models.FormType{Name: "W-2"}},
		Email:       "jane@example.com",
		FullName:    "Jane <Doe>",
		Notes:       "Need page 2",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"jane@example.com"}, mailer.to)
	assert.Equal(t, "Update on your W-2 application: In Review", mailer.subject)
	assert.Contains(t, mailer.body, "Jane &lt;Doe&gt;")
	assert.Contains(t, mailer.body, "Need page 2")
}

func TestMailNotifierSkipsWithoutSMTPOrEmail(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewMailNotifier(mailer)
	require.NoError(t, n.StatusChanged(context.Background(), StatusChange{Email: "jane@example.com"}))
	assert.Nil(t, mailer.to)

	mailer.configured = true
	require.NoError(t, n.StatusChanged(context.Background(), StatusChange{}))
	assert.Nil(t, mailer.to)
}
