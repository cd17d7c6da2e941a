// Package notify renders moderation reports and dispatches them to the
// configured sinks. Dispatch is a pure side effect: nothing here touches
// question, vote, or user state, and a failing sink never blocks the other.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"sync"
	texttemplate "text/template"

	"github.com/plus-me/backend/internal/domain"
	"github.com/plus-me/backend/internal/metrics"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

const reportSubject = "Eine Frage wurde gemeldet"

// MailSender dispatches a rendered report over email.
type MailSender interface {
	Send(ctx context.Context, subject, plain, html string) error
}

// ChatSender dispatches a one-line report notification to a chat channel.
type ChatSender interface {
	Notify(ctx context.Context, text string) error
}

// reportParams feeds the report templates.
type reportParams struct {
	Question string
	Link     string
	Reason   string
	Reporter string
}

// Notifier implements domain.ReportNotifier.
type Notifier struct {
	mail       MailSender
	chat       ChatSender
	mailActive bool
	baseURL    string

	plainTmpl *texttemplate.Template
	htmlTmpl  *htmltemplate.Template
}

// New creates a Notifier. mail may be nil when no SMTP host is configured;
// chat may be nil when no webhook URL is configured. The mailActive flag
// gates email dispatch only — rendering always happens, and the chat sink is
// always attempted regardless of the flag.
func New(mail MailSender, chat ChatSender, mailActive bool, baseURL string) (*Notifier, error) {
	plainTmpl, err := texttemplate.ParseFS(templateFiles, "templates/report_question_email.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse plain report template: %w", err)
	}
	htmlTmpl, err := htmltemplate.ParseFS(templateFiles, "templates/report_question_email.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse html report template: %w", err)
	}

	return &Notifier{
		mail:       mail,
		chat:       chat,
		mailActive: mailActive,
		baseURL:    baseURL,
		plainTmpl:  plainTmpl,
		htmlTmpl:   htmlTmpl,
	}, nil
}

// Report renders the notification and dispatches it to both sinks
// concurrently. Sink failures are logged and counted, never returned: the
// triggering request must not fail because a notification channel is down.
func (n *Notifier) Report(ctx context.Context, question *domain.Question, reporter *domain.User, reason string) {
	params := reportParams{
		Question: question.Text,
		Link:     n.moderationLink(question),
		Reason:   reason,
		Reporter: reporter.Username,
	}

	plain, html, err := n.render(params)
	if err != nil {
		slog.Error("Failed to render report notification", "question_id", question.ID, "error", err)
		return
	}

	var wg sync.WaitGroup

	if n.mail != nil && n.mailActive {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := n.mail.Send(ctx, reportSubject, plain, html); err != nil {
				metrics.ReportsDispatched.WithLabelValues("email", "error").Inc()
				slog.Error("Failed to send report email", "question_id", question.ID, "error", err)
				return
			}
			metrics.ReportsDispatched.WithLabelValues("email", "ok").Inc()
		}()
	}

	if n.chat != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text := fmt.Sprintf("%s: %q — Grund: %s — gemeldet von %s — %s",
				reportSubject, params.Question, params.Reason, params.Reporter, params.Link)
			if err := n.chat.Notify(ctx, text); err != nil {
				metrics.ReportsDispatched.WithLabelValues("chat", "error").Inc()
				slog.Error("Failed to send report chat notification", "question_id", question.ID, "error", err)
				return
			}
			metrics.ReportsDispatched.WithLabelValues("chat", "ok").Inc()
		}()
	}

	wg.Wait()
}

func (n *Notifier) render(params reportParams) (plain, html string, err error) {
	var plainBuf bytes.Buffer
	if err := n.plainTmpl.Execute(&plainBuf, params); err != nil {
		return "", "", fmt.Errorf("failed to render plain body: %w", err)
	}

	var htmlBuf bytes.Buffer
	if err := n.htmlTmpl.Execute(&htmlBuf, params); err != nil {
		return "", "", fmt.Errorf("failed to render html body: %w", err)
	}

	return plainBuf.String(), htmlBuf.String(), nil
}

func (n *Notifier) moderationLink(question *domain.Question) string {
	return fmt.Sprintf("%s/moderation/questions/%s", n.baseURL, question.ID)
}
