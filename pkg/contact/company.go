package contact

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/hub612/contactsync/internal/brevo"
)

// The company name scan stops after MaxCompanyPages pages of CompanyPageSize companies.
const (
	CompanyPageSize = 50
	MaxCompanyPages = 4
)

// resolveCompany creates the startup's company or finds it when Brevo refuses the create.
// An empty id means the workflow continues without a company.
func (h *Handler) resolveCompany(ctx context.Context, log *zap.Logger, name string) brevo.CompanyID {

	id, err := h.crm.CreateCompany(ctx, name)
	if err == nil {
		log.Info("company created", zap.String("company_id", string(id)))
		return id
	}
	log.Info("could not create company, searching for it", zap.Error(err))

	id, err = h.findCompany(ctx, name)
	if err != nil {
		log.Warn("company search failed", zap.Error(err))
	}
	if id == "" {
		log.Info("company not found, continuing without company association")
		return ""
	}

	log.Info("company found", zap.String("company_id", string(id)))
	return id
}

// findCompany scans company pages for a case-insensitive exact name match
func (h *Handler) findCompany(ctx context.Context, name string) (brevo.CompanyID, error) {

	fold := cases.Fold()
	want := fold.String(name)

	for page := 0; page < MaxCompanyPages; page++ {
		offset := page * CompanyPageSize

		items, err := h.crm.ListCompanies(ctx, CompanyPageSize, offset)
		if err != nil {
			return "", eris.Wrapf(err, "could not list companies at offset %d", offset)
		}

		for _, c := range items {
			if c.ID != "" && fold.String(c.Name) == want {
				return c.ID, nil
			}
		}

		// a short page is the last one
		if len(items) < CompanyPageSize {
			break
		}
	}
	return "", nil
}

// linkCompany associates the contact with the company. An existing link counts as success.
func (h *Handler) linkCompany(ctx context.Context, log *zap.Logger, company brevo.CompanyID, contact int64) bool {

	log = log.With(zap.String("company_id", string(company)), zap.Int64("contact_id", contact))

	err := h.crm.LinkContacts(ctx, company, brevo.LinkRequest{LinkContactIDs: []int64{contact}})
	if err == nil {
		log.Info("contact linked to company")
		return true
	}

	if ae, ok := brevo.AsAPIError(err); ok {
		if ae.Code == brevo.CodeDuplicateParameter || ae.Code == brevo.CodeInvalidParameter {
			log.Info("contact already linked to company")
			return true
		}
	}

	log.Error("could not link contact to company", zap.Error(err))
	return false
}
