package notify

import (
	"context"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"
)

type smtpMail struct {
	from, rcpt string
	data       []string
}

// fakeSMTP accepts a single connection and records one transaction.
func fakeSMTP(t *testing.T, rejectRcpt bool) (int, <-chan smtpMail) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	out := make(chan smtpMail, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		var mail smtpMail
		_ = tp.PrintfLine("220 fake ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				out <- mail
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				_ = tp.PrintfLine("250 fake")
			case strings.HasPrefix(cmd, "MAIL"):
				mail.from = line
				_ = tp.PrintfLine("250 ok")
			case strings.HasPrefix(cmd, "RCPT"):
				if rejectRcpt {
					_ = tp.PrintfLine("550 no such user")
					continue
				}
				mail.rcpt = line
				_ = tp.PrintfLine("250 ok")
			case strings.HasPrefix(cmd, "DATA"):
				_ = tp.PrintfLine("354 go ahead")
				mail.data, _ = tp.ReadDotLines()
				_ = tp.PrintfLine("250 queued")
			case strings.HasPrefix(cmd, "QUIT"):
				_ = tp.PrintfLine("221 bye")
				out <- mail
				return
			default:
				_ = tp.PrintfLine("502 unsupported")
			}
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, out
}

func TestSMTPSenderDelivers(t *testing.T) {
	port, got := fakeSMTP(t, false)
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: port, From: "noreply@momentum.test", FromName: "Momentum"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.SendEmail(ctx, Message{To: "dana@example.com", Subject: "Application received", HTML: "<p>Thanks</p>"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case mail := <-got:
		if !strings.Contains(mail.from, "<noreply@momentum.test>") || !strings.Contains(mail.rcpt, "<dana@example.com>") {
			t.Fatalf("unexpected envelope: %q %q", mail.from, mail.rcpt)
		}
		body := strings.Join(mail.data, "\n")
		for _, want := range []string{
			"From: Momentum <noreply@momentum.test>",
			"To: dana@example.com",
			"Subject: Application received",
			`Content-Type: text/html; charset="utf-8"`,
			"<p>Thanks</p>",
		} {
			if !strings.Contains(body, want) {
				t.Fatalf("message missing %q:\n%s", want, body)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server never finished the transaction")
	}
}

func TestSMTPSenderRejectedRecipient(t *testing.T) {
	port, _ := fakeSMTP(t, true)
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: port, From: "noreply@momentum.test"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.SendEmail(ctx, Message{To: "nobody@example.com", Subject: "x", HTML: "x"})
	if err == nil || !strings.Contains(err.Error(), "smtp recipient") {
		t.Fatalf("expected recipient error, got %v", err)
	}
}

func TestBuildMIMEEncodesNonASCIIHeaders(t *testing.T) {
	raw := string(buildMIME("Équipe Momentum", "noreply@momentum.test", Message{To: "a@b.test", Subject: "Reçu", HTML: "<p>ok</p>"}))
	if !strings.Contains(raw, "From: =?utf-8?q?") || !strings.Contains(raw, "Subject: =?utf-8?q?") {
		t.Fatalf("expected encoded-word headers:\n%s", raw)
	}
	if !strings.HasSuffix(raw, "\r\n\r\n<p>ok</p>\r\n") {
		t.Fatalf("unexpected body framing: %q", raw)
	}
}
