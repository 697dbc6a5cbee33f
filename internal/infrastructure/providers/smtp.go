package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"text/template"

	domain "walletcore.backend/internal/domain/providers"
	"walletcore.backend/pkg/utils"
)

const SMTPName = "smtp"

var smtpSendMail = smtp.SendMail

var emailTemplates = map[string]*template.Template{
	"otp": template.Must(template.New("otp").Parse(
		"Your verification code is {{.code}}. It expires in {{.expires_in}} seconds.\r\n")),
	"notification": template.Must(template.New("notification").Parse(
		"{{.message}}\r\n")),
}

// SMTP delivers email over plain SMTP with optional PLAIN auth.
type SMTP struct {
	host   string
	port   int
	sender string
	auth   smtp.Auth
}

func NewSMTP(host string, port int, username, password, sender string) *SMTP {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTP{host: host, port: port, sender: sender, auth: auth}
}

func (p *SMTP) Name() string { return SMTPName }

func (p *SMTP) SendEmail(_ context.Context, msg domain.EmailMessage) error {
	if len(msg.Recipients) == 0 {
		return observe(SMTPName, domain.CategoryEmail, domain.NewError(SMTPName, domain.CategoryEmail, "no recipients", nil))
	}
	body, err := renderEmailBody(msg)
	if err != nil {
		return observe(SMTPName, domain.CategoryEmail, domain.NewError(SMTPName, domain.CategoryEmail, "render template", err))
	}
	raw, err := buildMIME(p.sender, msg, body)
	if err != nil {
		return observe(SMTPName, domain.CategoryEmail, domain.NewError(SMTPName, domain.CategoryEmail, "build message", err))
	}
	addr := p.host + ":" + strconv.Itoa(p.port)
	if err := smtpSendMail(addr, p.auth, p.sender, msg.Recipients, raw); err != nil {
		return observe(SMTPName, domain.CategoryEmail, domain.NewError(SMTPName, domain.CategoryEmail, "send failed", err))
	}
	return observe(SMTPName, domain.CategoryEmail, nil)
}

func renderEmailBody(msg domain.EmailMessage) (string, error) {
	if msg.Body != "" {
		return msg.Body, nil
	}
	if tpl, ok := emailTemplates[msg.TemplateName]; ok {
		var buf bytes.Buffer
		if err := tpl.Execute(&buf, msg.Context); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
	keys := make([]string, 0, len(msg.Context))
	for k := range msg.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\r\n", k, msg.Context[k])
	}
	return b.String(), nil
}

func buildMIME(from string, msg domain.EmailMessage, body string) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(msg.Attachments) == 0 {
		buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
		buf.WriteString(body)
		return buf.Bytes(), nil
	}

	boundary := "walletcore-" + strings.ReplaceAll(utils.GenerateUUIDv7().String(), "-", "")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&buf, "--%s\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s\r\n", boundary, body)
	for _, a := range msg.Attachments {
		ct := firstNonEmpty(a.ContentType, "application/octet-stream")
		fmt.Fprintf(&buf, "--%s\r\nContent-Type: %s\r\nContent-Transfer-Encoding: base64\r\n", boundary, ct)
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", a.Filename)
		enc := base64.StdEncoding.EncodeToString(a.Data)
		for len(enc) > 76 {
			buf.WriteString(enc[:76] + "\r\n")
			enc = enc[76:]
		}
		buf.WriteString(enc + "\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes(), nil
}
