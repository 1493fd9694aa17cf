package mailer

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(orig) })

	if err := (LogSender{}).Send("coach@example.com", "Montage ready", "link here"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "coach@example.com") || !strings.Contains(out, "Montage ready") {
		t.Errorf("log output missing message fields: %q", out)
	}
}

func TestSMTPSenderUnreachableRelay(t *testing.T) {
	t.Parallel()

	// Port 1 is never listening; the error must wrap the recipient.
	s := NewSMTPSender("127.0.0.1:1", "noreply@example.com")
	err := s.Send("coach@example.com", "subject", "body")
	if err == nil {
		t.Fatalf("Send() to unreachable relay succeeded")
	}
	if !strings.Contains(err.Error(), "coach@example.com") {
		t.Errorf("error %q does not name the recipient", err)
	}
}
