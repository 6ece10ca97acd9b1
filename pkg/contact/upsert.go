package contact

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/hub612/contactsync/internal/brevo"
)

// outcome classifies the CRM's answer to a contact create
type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeDuplicatePhone
	outcomeDuplicateEmail
	outcomeRejectedPhone
	outcomeRejectedEmail
	outcomeRejected
	outcomeUnavailable
)

var outcomeNames = map[outcome]string{
	outcomeCreated:        "created",
	outcomeUpdated:        "updated",
	outcomeDuplicatePhone: "duplicate_phone",
	outcomeDuplicateEmail: "duplicate_email",
	outcomeRejectedPhone:  "rejected_phone",
	outcomeRejectedEmail:  "rejected_email",
	outcomeRejected:       "rejected",
	outcomeUnavailable:    "unavailable",
}

func (o outcome) String() string {
	return outcomeNames[o]
}

// upsertResult is a classified create call
type upsertResult struct {
	outcome outcome
	id      int64
	// phoneConflict is set on duplicate email answers that also name the phone
	phoneConflict bool
	err           error
}

// contactRef is what the rest of the workflow knows about the contact
type contactRef struct {
	id    int64
	added bool
}

var phoneFields = []string{"sms", "phone", "telephone"}

// classify maps a create call's result to an outcome
func classify(id int64, err error) upsertResult {

	if err == nil {
		if id != 0 {
			return upsertResult{outcome: outcomeCreated, id: id}
		}
		return upsertResult{outcome: outcomeUpdated}
	}

	ae, ok := brevo.AsAPIError(err)
	if !ok {
		return upsertResult{outcome: outcomeUnavailable, err: err}
	}

	switch {
	case ae.Code == brevo.CodeInvalidParameter && ae.Mentions(phoneFields...):
		return upsertResult{outcome: outcomeRejectedPhone, err: err}
	case ae.Code == brevo.CodeInvalidParameter && ae.Mentions("email"):
		return upsertResult{outcome: outcomeRejectedEmail, err: err}
	case ae.Code == brevo.CodeDuplicateParameter:
		email := ae.Mentions("email")
		phone := ae.Mentions(phoneFields...)
		if phone && !email {
			return upsertResult{outcome: outcomeDuplicatePhone, err: err}
		}
		// an unnamed duplicate means the email already exists
		return upsertResult{outcome: outcomeDuplicateEmail, phoneConflict: phone, err: err}
	case ae.IsClientError():
		return upsertResult{outcome: outcomeRejected, err: err}
	default:
		return upsertResult{outcome: outcomeUnavailable, err: err}
	}
}

// upsertContact creates or updates the contact and resolves its identifier.
// Every branch either returns an id, or an explicit Failure, or reports that the
// CRM holds the contact but its id could not be read.
func (h *Handler) upsertContact(ctx context.Context, log *zap.Logger, email string, attrs brevo.ContactAttributes) (contactRef, error) {

	req := brevo.CreateContactRequest{
		Email:         email,
		Attributes:    attrs,
		ListIDs:       []int64{h.cfg.Brevo.ListID},
		UpdateEnabled: true,
	}

	r := classify(h.crm.CreateContact(ctx, req))
	log.Debug("contact upsert answered", zap.Stringer("outcome", r.outcome), zap.Error(r.err))

	switch r.outcome {
	case outcomeCreated:
		log.Info("contact created", zap.Int64("contact_id", r.id))
		return contactRef{id: r.id, added: true}, nil

	case outcomeUpdated:
		log.Info("existing contact updated")
		return h.lookupContact(ctx, log, email, true)

	case outcomeRejectedPhone:
		return contactRef{}, &Failure{Status: http.StatusBadRequest, Message: "Invalid phone number format", Details: errorText(r.err), Err: r.err}

	case outcomeRejectedEmail:
		return contactRef{}, &Failure{Status: http.StatusBadRequest, Message: "Invalid email address", Details: errorText(r.err), Err: r.err}

	case outcomeRejected:
		return contactRef{}, &Failure{Status: http.StatusBadRequest, Message: "Could not save contact", Details: errorText(r.err), Err: r.err}

	case outcomeDuplicatePhone:
		if !attrs.HasPhone() {
			// a retry would send the same payload
			log.Warn("phone conflict reported without a phone, looking the contact up", zap.Error(r.err))
			return h.lookupContact(ctx, log, email, false)
		}
		log.Info("phone number belongs to another contact, retrying without it")
		return h.retryWithoutPhone(ctx, log, req)

	case outcomeDuplicateEmail:
		log.Info("contact already exists, updating it", zap.Bool("phone_conflict", r.phoneConflict))
		return h.updateExisting(ctx, log, email, attrs, r.phoneConflict)

	default:
		log.Warn("could not create contact, looking it up", zap.Error(r.err))
		return h.lookupContact(ctx, log, email, false)
	}
}

// retryWithoutPhone repeats the create without phone attributes, then reads the id by email if the retry did not return one
func (h *Handler) retryWithoutPhone(ctx context.Context, log *zap.Logger, req brevo.CreateContactRequest) (contactRef, error) {

	req.Attributes = req.Attributes.WithoutPhone()

	r := classify(h.crm.CreateContact(ctx, req))
	switch r.outcome {
	case outcomeCreated:
		log.Info("contact created without phone", zap.Int64("contact_id", r.id))
		return contactRef{id: r.id, added: true}, nil
	case outcomeUpdated, outcomeDuplicateEmail, outcomeDuplicatePhone:
		return h.lookupContact(ctx, log, req.Email, true)
	default:
		log.Warn("retry without phone failed", zap.Stringer("outcome", r.outcome), zap.Error(r.err))
		return h.lookupContact(ctx, log, req.Email, false)
	}
}

// updateExisting reads the contact's id by email and writes the new attributes
func (h *Handler) updateExisting(ctx context.Context, log *zap.Logger, email string, attrs brevo.ContactAttributes, phoneConflict bool) (contactRef, error) {

	ct, err := h.crm.GetContact(ctx, email)
	if err != nil {
		log.Error("could not get existing contact", zap.Error(err))
		return contactRef{added: true}, nil
	}

	if phoneConflict {
		attrs = attrs.WithoutPhone()
	}

	upd := brevo.UpdateContactRequest{Attributes: attrs, ListIDs: []int64{h.cfg.Brevo.ListID}}
	if err := h.crm.UpdateContact(ctx, email, upd); err != nil {
		log.Error("could not update existing contact", zap.Int64("contact_id", ct.ID), zap.Error(err))
	} else {
		log.Info("existing contact updated", zap.Int64("contact_id", ct.ID))
	}

	return contactRef{id: ct.ID, added: true}, nil
}

// lookupContact reads the id by email. A miss is fatal only when the CRM never acknowledged the contact.
func (h *Handler) lookupContact(ctx context.Context, log *zap.Logger, email string, added bool) (contactRef, error) {

	ct, err := h.crm.GetContact(ctx, email)
	if err == nil && ct.ID != 0 {
		log.Info("contact id retrieved", zap.Int64("contact_id", ct.ID))
		return contactRef{id: ct.ID, added: added}, nil
	}

	if added {
		log.Warn("contact saved but its id could not be read", zap.Error(err))
		return contactRef{added: true}, nil
	}

	return contactRef{}, &Failure{
		Status:  http.StatusInternalServerError,
		Message: "Could not save contact",
		Details: "contact could not be created or found",
		Err:     err,
	}
}
