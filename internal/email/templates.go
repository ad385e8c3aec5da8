package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"
)

const paymentConfirmationTag = "payment-confirmation"

// PaymentInfo is the data rendered into a payment confirmation.
type PaymentInfo struct {
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	Amount        int64
	Currency      string
	TransactionID string
	PaidAt        time.Time
}

var templateFuncs = map[string]any{
	"formatAmount": FormatAmount,
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			t = time.Now()
		}
		return t.Format("02/01/2006 15:04")
	},
}

var (
	paymentConfirmationHTMLTemplate = htmltemplate.Must(htmltemplate.New("payment_confirmation_html").Funcs(templateFuncs).Parse(paymentConfirmationHTML))
	paymentConfirmationTextTemplate = texttemplate.Must(texttemplate.New("payment_confirmation_text").Funcs(templateFuncs).Parse(paymentConfirmationText))
)

// RenderPaymentConfirmation builds the confirmation message for a paid order.
func RenderPaymentConfirmation(info *PaymentInfo) (*Email, error) {
	if info == nil {
		return nil, fmt.Errorf("payment info is required")
	}
	if strings.TrimSpace(info.CustomerEmail) == "" {
		return nil, fmt.Errorf("customer email is required")
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := paymentConfirmationHTMLTemplate.Execute(&htmlBuf, info); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}
	if err := paymentConfirmationTextTemplate.Execute(&textBuf, info); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}

	return &Email{
		To:      info.CustomerEmail,
		Subject: fmt.Sprintf("Paiement confirmé - Commande %s", info.OrderNumber),
		Text:    textBuf.String(),
		HTML:    htmlBuf.String(),
		Tag:     paymentConfirmationTag,
	}, nil
}

// SendPaymentConfirmation renders and sends the confirmation. A nil provider is a no-op.
func SendPaymentConfirmation(ctx context.Context, p Provider, info *PaymentInfo) error {
	if p == nil {
		return nil
	}

	email, err := RenderPaymentConfirmation(info)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return p.SendEmail(ctx, email)
}

// FormatAmount renders an amount in the smallest currency unit. XOF and XAF have
// no minor unit; other currencies are shown with two decimals.
func FormatAmount(amount int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	switch currency {
	case "XOF", "XAF", "JPY", "GNF":
		return sign + groupThousands(amount) + " " + currency
	}
	return fmt.Sprintf("%s%s.%02d %s", sign, groupThousands(amount/100), amount%100, currency)
}

func groupThousands(n int64) string {
	digits := strconv.FormatInt(n, 10)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	return strings.Join(append([]string{digits}, groups...), " ")
}

const paymentConfirmationText = `Bonjour {{.CustomerName}},

Nous avons bien reçu votre paiement.

Commande : {{.OrderNumber}}
Montant : {{formatAmount .Amount .Currency}}
{{- if .TransactionID}}
Référence : {{.TransactionID}}
{{- end}}
Date : {{formatDate .PaidAt}}

Votre commande est confirmée et sera préparée pour la livraison.

Merci pour votre confiance.
`

const paymentConfirmationHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Paiement confirmé</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #059669; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
    .total { font-size: 20px; font-weight: bold; }
    .footer { text-align: center; padding: 20px; color: #6b7280; font-size: 14px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Paiement confirmé</h1>
    <p>Merci {{.CustomerName}} !</p>
  </div>
  <div class="content">
    <p><strong>Commande :</strong> {{.OrderNumber}}</p>
    <p class="total">{{formatAmount .Amount .Currency}}</p>
    {{if .TransactionID}}<p><strong>Référence :</strong> {{.TransactionID}}</p>{{end}}
    <p><strong>Date :</strong> {{formatDate .PaidAt}}</p>
    <p>Votre commande est confirmée et sera préparée pour la livraison.</p>
  </div>
  <div class="footer">
    <p>Merci pour votre confiance.</p>
  </div>
</body>
</html>
`
