package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog"
)

func receiptSubject(projectName string) string {
	return fmt.Sprintf("Compra confirmada: %s", projectName)
}

func receiptBody(projectName string, p ReceiptPayload) string {
	var b strings.Builder
	b.WriteString("<p>Obrigado pela sua compra!</p>")
	fmt.Fprintf(&b, "<p>Projeto: <strong>%s</strong></p>", html.EscapeString(projectName))
	fmt.Fprintf(&b, "<p>Valor: %s</p>", FormatAmount(p.Amount, p.Currency))
	if p.PurchaseID != "" {
		fmt.Fprintf(&b, "<p>Pedido: %s</p>", html.EscapeString(p.PurchaseID))
	}
	return b.String()
}

// FormatAmount renders minor units for display. BRL uses the Brazilian format.
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	whole, cents := minor/100, minor%100
	switch strings.ToLower(currency) {
	case "brl", "":
		return fmt.Sprintf("%sR$ %s,%02d", sign, groupThousands(whole, "."), cents)
	default:
		return fmt.Sprintf("%s%s.%02d %s", sign, groupThousands(whole, ","), cents, strings.ToUpper(currency))
	}
}

func groupThousands(n int64, sep string) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// LogSender is an EmailSender that writes messages to the log instead of
// delivering them.
type LogSender struct {
	Logger zerolog.Logger
	From   string
}

func (s LogSender) Send(to, subject, body string) error {
	s.Logger.Info().
		Str("from", s.From).
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("email")
	return nil
}
