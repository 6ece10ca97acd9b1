package contact

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/hub612/contactsync/internal/brevo"
)

// sync runs the stages in order. Only an unrecoverable contact rejection or a failed
// thank-you email stop it; company, note and inbox steps are best effort.
func (h *Handler) sync(ctx context.Context, log *zap.Logger, sub *Submission) (*Result, error) {

	ct, err := h.upsertContact(ctx, log, sub.Email, h.attributes(sub))
	if err != nil {
		return nil, err
	}

	out := &Result{Success: true, ContactAdded: ct.added}

	var company brevo.CompanyID
	if ct.id != 0 {
		id := ct.id
		out.ContactID = &id

		company = h.resolveCompany(ctx, log, sub.StartupName)
		out.CompanyID = companyRef(company)
		if company != "" {
			out.CompanyLinked = h.linkCompany(ctx, log, company, ct.id)
		}

		if sub.hasQuestionnaire() {
			h.attachNote(ctx, log, sub, ct.id, company)
		}
	} else {
		log.Warn("no contact identifier, skipping company and note")
	}

	mid, err := h.sendThankYou(ctx, sub)
	if err != nil {
		return nil, &Failure{
			Status:  http.StatusInternalServerError,
			Message: "Failed to send thank you email",
			Details: errorText(err),
			Err:     err,
		}
	}
	out.MessageID = mid
	log.Info("thank you email sent", zap.String("message_id", mid))

	h.forwardToInbox(ctx, log, sub, out)

	return out, nil
}

// attributes maps a submission to CRM contact attributes
func (h *Handler) attributes(sub *Submission) brevo.ContactAttributes {

	a := brevo.ContactAttributes{
		FirstName: sub.FirstName,
		LastName:  sub.LastName,
		Startup:   sub.StartupName,
		Company:   sub.StartupName,
		Message:   sub.Message,
	}

	if p, ok := h.phone.Normalize(sub.Phone); ok {
		a.SMS = p
		a.Telephone = p
	}
	return a
}

// errorText prefers the raw provider answer
func errorText(err error) string {
	if ae, ok := brevo.AsAPIError(err); ok && ae.Body != "" {
		return ae.Body
	}
	return err.Error()
}
