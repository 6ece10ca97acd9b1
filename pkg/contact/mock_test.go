package contact

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/hub612/contactsync/internal/brevo"
	"github.com/hub612/contactsync/internal/config"
)

type createReply struct {
	id  int64
	err error
}

// mockCRM answers from scripted values and records what it was sent
type mockCRM struct {
	creates    []createReply
	createReqs []brevo.CreateContactRequest

	contact   *brevo.Contact
	getErr    error
	gets      int
	updateErr error
	updates   []brevo.UpdateContactRequest

	companyID  brevo.CompanyID
	companyErr error
	pages      [][]brevo.Company
	listErr    error
	offsets    []int
	linkErr    error
	links      []brevo.LinkRequest

	noteErr error
	notes   []brevo.Note

	emailErr func(brevo.Email) error
	emails   []brevo.Email

	panicOnCreate bool
}

func (m *mockCRM) CreateContact(ctx context.Context, in brevo.CreateContactRequest) (int64, error) {
	if m.panicOnCreate {
		panic("boom")
	}
	m.createReqs = append(m.createReqs, in)
	if len(m.creates) == 0 {
		return 0, errors.New("unexpected create call")
	}
	r := m.creates[0]
	m.creates = m.creates[1:]
	return r.id, r.err
}

func (m *mockCRM) GetContact(ctx context.Context, email string) (*brevo.Contact, error) {
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.contact == nil {
		return nil, apiErr(404, brevo.CodeDocumentNotFound, "Contact does not exist")
	}
	return m.contact, nil
}

func (m *mockCRM) UpdateContact(ctx context.Context, email string, in brevo.UpdateContactRequest) error {
	m.updates = append(m.updates, in)
	return m.updateErr
}

func (m *mockCRM) CreateCompany(ctx context.Context, name string) (brevo.CompanyID, error) {
	return m.companyID, m.companyErr
}

func (m *mockCRM) ListCompanies(ctx context.Context, limit, offset int) ([]brevo.Company, error) {
	m.offsets = append(m.offsets, offset)
	if m.listErr != nil {
		return nil, m.listErr
	}
	if i := offset / limit; i < len(m.pages) {
		return m.pages[i], nil
	}
	return nil, nil
}

func (m *mockCRM) LinkContacts(ctx context.Context, id brevo.CompanyID, in brevo.LinkRequest) error {
	m.links = append(m.links, in)
	return m.linkErr
}

func (m *mockCRM) CreateNote(ctx context.Context, in brevo.Note) (string, error) {
	m.notes = append(m.notes, in)
	if m.noteErr != nil {
		return "", m.noteErr
	}
	return "note-1", nil
}

func (m *mockCRM) SendEmail(ctx context.Context, in brevo.Email) (string, error) {
	m.emails = append(m.emails, in)
	if m.emailErr != nil {
		if err := m.emailErr(in); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("<msg-%d@smtp-relay.brevo.com>", len(m.emails)), nil
}

func apiErr(status int, code, msg string, dup ...string) error {
	return &brevo.APIError{
		StatusCode:           status,
		Code:                 code,
		Message:              msg,
		DuplicateIdentifiers: dup,
		Body:                 fmt.Sprintf(`{"code":%q,"message":%q}`, code, msg),
	}
}

var (
	errDuplicatePhone = apiErr(400, brevo.CodeDuplicateParameter, "Unable to create contact, SMS is already associated with another Contact", "SMS")
	errDuplicateEmail = apiErr(400, brevo.CodeDuplicateParameter, "Contact already exist")
)

func testConfig() *config.Config {
	return &config.Config{
		Brevo: config.BrevoConfig{
			APIKey:      "xkeysib-test",
			ListID:      7,
			SenderEmail: "noreply@hub612.com",
			SenderName:  "Hub612",
		},
		Phone: config.PhoneConfig{DefaultCountryCode: "+33"},
	}
}

func newMockHandler(t *testing.T, m *mockCRM) *Handler {
	t.Helper()
	return NewHandler(testConfig(), m, zaptest.NewLogger(t))
}
