package email

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"carealert/internal/config"
)

func TestService_FromHeader(t *testing.T) {
	tests := []struct {
		name       string
		fromName   string
		fromAddr   string
		wantHeader string
	}{
		{
			name:       "with display name",
			fromName:   "CareAlert",
			fromAddr:   "noreply@example.edu",
			wantHeader: "CareAlert <noreply@example.edu>",
		},
		{
			name:       "without display name",
			fromName:   "",
			fromAddr:   "noreply@example.edu",
			wantHeader: "noreply@example.edu",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&config.Config{SMTPHost: "smtp.example.edu", SMTPFrom: tt.fromAddr, SMTPFromName: tt.fromName})
			if got := svc.fromHeader(); got != tt.wantHeader {
				t.Errorf("fromHeader() = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestBuildMessage(t *testing.T) {
	tests := []struct {
		name     string
		htmlBody string
		textBody string
		wantHTML bool
		wantText bool
	}{
		{"multipart message", "<p>HTML content</p>", "Text content", true, true},
		{"HTML only", "<p>HTML content</p>", "", true, false},
		{"Text only", "", "Text content", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := buildMessage("CareAlert <noreply@example.edu>", "student@example.edu", "Hello", tt.htmlBody, tt.textBody)

			for _, header := range []string{
				"From: CareAlert <noreply@example.edu>\r\n",
				"To: student@example.edu\r\n",
				"Subject: Hello\r\n",
				"MIME-Version: 1.0\r\n",
			} {
				if !strings.Contains(msg, header) {
					t.Errorf("message missing header %q", header)
				}
			}
			if got := strings.Contains(msg, "text/html"); got != tt.wantHTML {
				t.Errorf("has HTML part = %v, want %v", got, tt.wantHTML)
			}
			if got := strings.Contains(msg, "text/plain"); got != tt.wantText {
				t.Errorf("has text part = %v, want %v", got, tt.wantText)
			}
			if !strings.HasSuffix(msg, "--"+boundary+"--\r\n") {
				t.Error("message missing closing boundary")
			}
		})
	}
}

func TestService_Send_NoRecipient(t *testing.T) {
	svc := NewService(&config.Config{SMTPHost: "smtp.example.edu", SMTPFrom: "noreply@example.edu"})
	if err := svc.Send(context.Background(), "", "Test", "body"); err == nil {
		t.Error("Send() with no recipient should fail")
	}
}

// fakeSMTP accepts one plain SMTP session and records the DATA payload.
type fakeSMTP struct {
	ln   net.Listener
	mu   sync.Mutex
	rcpt string
	data string
	done chan struct{}
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeSMTP{ln: ln, done: make(chan struct{})}
	go f.serve()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeSMTP) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeSMTP) serve() {
	defer close(f.done)
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(s string) { io.WriteString(conn, s+"\r\n") }
	reply("220 fake.local ESMTP")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 fake.local")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			reply("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO"):
			f.mu.Lock()
			f.rcpt = strings.TrimSpace(line[len("RCPT TO:"):])
			f.mu.Unlock()
			reply("250 OK")
		case cmd == "DATA":
			reply("354 go ahead")
			var data strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				data.WriteString(l)
			}
			f.mu.Lock()
			f.data = data.String()
			f.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func TestService_Send_PlainSMTP(t *testing.T) {
	srv := newFakeSMTP(t)
	svc := NewService(&config.Config{
		SiteTitle:    "CareAlert",
		SMTPHost:     "127.0.0.1",
		SMTPPort:     srv.port(),
		SMTPFrom:     "noreply@example.edu",
		SMTPFromName: "CareAlert",
		SMTPTLS:      "none",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.Send(ctx, "student@example.edu", "Reminder", "See you Tuesday."); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	<-srv.done

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.rcpt != "<student@example.edu>" {
		t.Errorf("RCPT = %q", srv.rcpt)
	}
	if !strings.Contains(srv.data, "Subject: Reminder") || !strings.Contains(srv.data, "See you Tuesday.") {
		t.Errorf("DATA = %q", srv.data)
	}
}

func TestService_Send_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	svc := NewService(&config.Config{SMTPHost: "127.0.0.1", SMTPPort: port, SMTPFrom: "noreply@example.edu", SMTPTLS: "none"})
	err = svc.Send(context.Background(), "student@example.edu", "x", "y")
	if err == nil || !strings.Contains(err.Error(), "dial failed") {
		t.Errorf("Send() error = %v, want dial failure", err)
	}
}

func TestSendGridService_Send(t *testing.T) {
	var gotAuth string
	var payload struct {
		Personalizations []struct {
			To      []struct{ Email string } `json:"to"`
			Subject string                   `json:"subject"`
		} `json:"personalizations"`
		From    struct{ Email string } `json:"from"`
		Content []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"content"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != sendgridEndpoint {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	svc := NewSendGridService(&config.Config{SendGridAPIKey: "SG.test", SMTPFrom: "noreply@example.edu", SiteTitle: "CareAlert"})
	svc.host = srv.URL

	if err := svc.Send(context.Background(), "student@example.edu", "Hello", "Body text"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotAuth != "Bearer SG.test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(payload.Personalizations) != 1 || payload.Personalizations[0].To[0].Email != "student@example.edu" {
		t.Errorf("personalizations = %+v", payload.Personalizations)
	}
	if payload.From.Email != "noreply@example.edu" {
		t.Errorf("from = %q", payload.From.Email)
	}
	if len(payload.Content) != 2 || payload.Content[0].Value != "Body text" {
		t.Errorf("content = %+v", payload.Content)
	}
}

func TestSendGridService_Send_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"errors":[{"message":"bad key"}]}`)
	}))
	defer srv.Close()

	svc := NewSendGridService(&config.Config{SendGridAPIKey: "bad", SMTPFrom: "noreply@example.edu"})
	svc.host = srv.URL

	err := svc.Send(context.Background(), "student@example.edu", "Hello", "Body")
	if err == nil || !strings.Contains(err.Error(), strconv.Itoa(http.StatusUnauthorized)) {
		t.Errorf("Send() error = %v, want status 401", err)
	}
}
