package utils

import (
	"bytes"
	"html/template"

	"github.com/mailjet/mailjet-apiv3-go/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"trx_discount_back/models"
	"trx_discount_back/pkg/config"
)

var mailBody = template.Must(template.New("order").Parse(`<body style="margin:0;padding:0;background:#f6f6f6;">
  <table width="100%" cellpadding="0" cellspacing="0" border="0" style="max-width:600px;background:#f3f2f0;border-radius:28px;">
    <tr><td style="padding:32px;font-family:Arial,sans-serif;">
      <h1 style="margin:0 0 12px 0;font-size:28px;color:#111;">{{.Title}}</h1>
      <p style="margin:0 0 24px 0;font-size:16px;color:#222;">{{.Result.Message}}</p>
      <table cellpadding="0" cellspacing="0" border="0" style="width:100%;">
        <tr><td style="color:#555;padding:6px 0;">Attempt:</td><td style="font-weight:bold;">{{.Result.AttemptID}}</td></tr>
        <tr><td style="color:#555;padding:6px 0;">TRX:</td><td style="font-weight:bold;">{{.Result.TRXAmount}}</td></tr>
        <tr><td style="color:#555;padding:6px 0;">USDT:</td><td style="font-weight:bold;">{{.Result.USDTAmount}}</td></tr>
        {{range .Result.Records}}<tr><td style="color:#555;padding:6px 0;">{{.Kind}} tx:</td><td style="font-weight:bold;">{{.ID}}</td></tr>{{end}}
        {{if .Result.RevertReason}}<tr><td style="color:#555;padding:6px 0;">Revert reason:</td><td>{{.Result.RevertReason}}</td></tr>{{end}}
      </table>
    </td></tr>
  </table>
</body>`))

// MailjetNotifier tells the operator about manual payments and partial failures.
type MailjetNotifier struct {
	client    *mailjet.Client
	fromEmail string
	fromName  string
	toEmail   string
}

// NewMailjetNotifier returns nil when the Mailjet keys are not set.
func NewMailjetNotifier(cfg config.Notify) *MailjetNotifier {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		logrus.Warn("MAILJET_API_KEY or MAILJET_SECRET_KEY not set, operator notifications disabled")
		return nil
	}
	return &MailjetNotifier{
		client:    mailjet.NewMailjetClient(cfg.APIKey, cfg.SecretKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		toEmail:   cfg.ToEmail,
	}
}

// Subject returns the mail subject for outcomes worth a notification, or "" for the rest.
func Subject(result models.PurchaseResult) string {
	switch result.Outcome {
	case models.OutcomeAwaitingManualPayment:
		return "New manual TRX payment expected"
	case models.OutcomePartialFailure:
		return "ACTION REQUIRED: TRX received but USDT not credited"
	default:
		return ""
	}
}

func RenderBody(result models.PurchaseResult) (string, error) {
	var buf bytes.Buffer
	err := mailBody.Execute(&buf, struct {
		Title  string
		Result models.PurchaseResult
	}{Title: Subject(result), Result: result})
	return buf.String(), err
}

func (n *MailjetNotifier) Notify(result models.PurchaseResult) error {
	subject := Subject(result)
	if subject == "" {
		return nil
	}
	body, err := RenderBody(result)
	if err != nil {
		return errors.Wrap(err, "render mail")
	}

	messages := &mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{
		{
			From: &mailjet.RecipientV31{
				Email: n.fromEmail,
				Name:  n.fromName,
			},
			To: &mailjet.RecipientsV31{
				{Email: n.toEmail},
			},
			Subject:  subject,
			HTMLPart: body,
		},
	}}
	res, err := n.client.SendMailV31(messages)
	if err != nil {
		return errors.Wrap(err, "mailjet")
	}
	logrus.Debugf("mailjet response: %+v", res)
	logrus.WithField("attempt_id", result.AttemptID).Info("operator notified")
	return nil
}
