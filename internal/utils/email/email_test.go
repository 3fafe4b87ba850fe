package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/manabi-dev/manabi/internal/config"
	"github.com/manabi-dev/manabi/internal/errors"
)

func testEmail() *Email {
	return New(&config.Email{
		SMTPServer: "smtp.example.com",
		SMTPPort:   587,
		Username:   "noreply@example.com",
		SenderName: "Manabi",
	})
}

func TestIsCorrect(t *testing.T) {
	e := testEmail()

	assert.NoError(t, e.IsCorrect("student@example.com"))
	assert.NoError(t, e.IsCorrect("with.dots+tag@example.co.jp"))

	for _, bad := range []string{"", "plain", "missing@domain@twice.com", "@example.com"} {
		err := e.IsCorrect(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
		assert.Equal(t, 400, errors.StatusCode(err))
	}
}

func TestBuildMessage(t *testing.T) {
	e := testEmail()

	msg := string(e.buildMessage("student@example.com", "Password reset", "body text"))

	assert.Contains(t, msg, "To: student@example.com\r\n")
	assert.Contains(t, msg, "From: Manabi <noreply@example.com>\r\n")
	assert.Contains(t, msg, "Subject: Password reset\r\n")
	assert.Contains(t, msg, "Message-ID: <")
	assert.True(t, strings.HasSuffix(msg, "body text"))

	// Headers and body separated by a blank line
	assert.Contains(t, msg, "\r\n\r\nbody text")
}

func TestMessageIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, generateMessageID("example.com"), generateMessageID("example.com"))
}
