package contact

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hub612/contactsync/internal/brevo"
)

const (
	thankYouSubject = "Merci pour votre demande - Hub612 Start to Scale"
	programmeName   = "Start to Scale"
)

// html/template escapes every field
var thankYouTemplate = template.Must(template.New("thankyou").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Merci pour votre intérêt !</h2>
  <p>Bonjour {{.Name}},</p>
  <p>Nous avons bien reçu votre demande de contact concernant <strong>{{.Startup}}</strong>.</p>
  <p>Nous vous remercions de votre intérêt pour notre programme <strong>{{.Programme}}</strong>.</p>
  <p>Notre équipe va examiner votre demande et reviendra vers vous rapidement pour un premier échange.</p>
  <p>En attendant, n'hésitez pas à consulter notre site pour en savoir plus sur nos services.</p>
  <p style="margin-top: 30px;">Cordialement,<br>L'équipe Hub612</p>
</div>
`))

func renderThankYou(sub *Submission) (string, error) {
	var b bytes.Buffer
	err := thankYouTemplate.Execute(&b, struct {
		Name      string
		Startup   string
		Programme string
	}{
		Name:      sub.FullName(),
		Startup:   sub.StartupName,
		Programme: programmeName,
	})
	if err != nil {
		return "", eris.Wrap(err, "could not render thank you email")
	}
	return b.String(), nil
}

// sendThankYou emails the submitter and returns the message id
func (h *Handler) sendThankYou(ctx context.Context, sub *Submission) (string, error) {

	html, err := renderThankYou(sub)
	if err != nil {
		return "", err
	}

	return h.crm.SendEmail(ctx, brevo.Email{
		Sender:      h.sender(),
		To:          []brevo.Address{{Email: sub.Email, Name: sub.FullName()}},
		Subject:     thankYouSubject,
		HTMLContent: html,
	})
}

// forwardToInbox sends the team a plain copy of the submission when a recipient is configured
func (h *Handler) forwardToInbox(ctx context.Context, log *zap.Logger, sub *Submission, res *Result) {

	to := strings.TrimSpace(h.cfg.Notify.Recipient)
	if to == "" {
		return
	}

	id, err := h.crm.SendEmail(ctx, brevo.Email{
		Sender:      h.sender(),
		To:          []brevo.Address{{Email: to}},
		ReplyTo:     &brevo.Address{Email: sub.Email, Name: sub.FullName()},
		Subject:     fmt.Sprintf("Nouvelle demande de contact - %s", sub.StartupName),
		TextContent: inboxText(sub, res),
	})
	if err != nil {
		log.Error("could not forward submission to inbox", zap.Error(err))
		return
	}
	log.Info("submission forwarded to inbox", zap.String("message_id", id))
}

func inboxText(sub *Submission, res *Result) string {

	var b strings.Builder
	fmt.Fprintf(&b, "Startup : %s\n", sub.StartupName)
	fmt.Fprintf(&b, "Contact : %s\n", sub.FullName())
	fmt.Fprintf(&b, "Email : %s\n", sub.Email)
	if sub.Phone != "" {
		fmt.Fprintf(&b, "Téléphone : %s\n", sub.Phone)
	}
	if res.ContactID != nil {
		fmt.Fprintf(&b, "Contact Brevo : %d\n", *res.ContactID)
	}
	if res.CompanyID != "" {
		fmt.Fprintf(&b, "Entreprise Brevo : %s\n", string(res.CompanyID))
	}

	if sub.hasQuestionnaire() {
		b.WriteString("\n")
		b.WriteString(buildNote(sub))
	} else if sub.Message != "" {
		fmt.Fprintf(&b, "\nMessage :\n%s\n", sub.Message)
	}
	return b.String()
}

func (h *Handler) sender() brevo.Address {
	return brevo.Address{Name: h.cfg.Brevo.SenderName, Email: h.cfg.Brevo.SenderEmail}
}
