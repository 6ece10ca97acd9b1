package contact

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hub612/contactsync/internal/brevo"
)

type fakeContact struct {
	id    int64
	email string
	attrs brevo.ContactAttributes
	lists []int64
}

// fakeBrevo is an in-memory stand-in for the Brevo endpoints the handler calls
type fakeBrevo struct {
	mu sync.Mutex

	contacts  map[string]*fakeContact
	companies []brevo.Company
	links     map[brevo.CompanyID][]int64
	notes     []brevo.Note
	emails    []brevo.Email
	calls     int
	lastID    int64

	// fail maps an operation name to the status it answers with
	fail map[string]int
}

func newFakeBrevo(t *testing.T) (*fakeBrevo, *httptest.Server) {
	t.Helper()

	f := &fakeBrevo{
		contacts: make(map[string]*fakeContact),
		links:    make(map[brevo.CompanyID][]int64),
		fail:     make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(f.count, f.authorize)
	r.Route("/v3", func(r chi.Router) {
		r.Post("/contacts", f.createContact)
		r.Get("/contacts/{email}", f.getContact)
		r.Put("/contacts/{email}", f.updateContact)
		r.Post("/companies", f.createCompany)
		r.Get("/companies", f.listCompanies)
		r.Patch("/companies/link-unlink/{id}", f.link)
		r.Post("/crm/notes", f.createNote)
		r.Post("/smtp/email", f.sendEmail)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeBrevo) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls++
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *fakeBrevo) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") == "" {
			reply(w, http.StatusUnauthorized, map[string]string{"code": "unauthorized", "message": "Key not found"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fakeBrevo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// seed stores a contact directly
func (f *fakeBrevo) seed(email string, attrs brevo.ContactAttributes) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastID++
	f.contacts[strings.ToLower(email)] = &fakeContact{id: f.lastID, email: email, attrs: attrs}
	return f.lastID
}

func (f *fakeBrevo) contact(email string) *fakeContact {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contacts[strings.ToLower(email)]
}

func (f *fakeBrevo) failed(w http.ResponseWriter, op string) bool {
	status, ok := f.fail[op]
	if !ok {
		return false
	}
	reply(w, status, map[string]string{"code": "internal_error", "message": op + " is unavailable"})
	return true
}

func reply(w http.ResponseWriter, status int, v interface{}) {
	if v == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func replyError(w http.ResponseWriter, code, msg string, dup ...string) {
	body := map[string]interface{}{"code": code, "message": msg}
	if len(dup) > 0 {
		body["metadata"] = map[string]interface{}{"duplicate_identifiers": dup}
	}
	reply(w, http.StatusBadRequest, body)
}

func (f *fakeBrevo) createContact(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed(w, "createContact") {
		return
	}

	var in brevo.CreateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		replyError(w, "bad_request", err.Error())
		return
	}

	if in.Attributes.SMS != "" {
		if len(in.Attributes.SMS) < 10 {
			replyError(w, brevo.CodeInvalidParameter, "Invalid phone number")
			return
		}
		for k, c := range f.contacts {
			if k != strings.ToLower(in.Email) && c.attrs.SMS == in.Attributes.SMS {
				replyError(w, brevo.CodeDuplicateParameter, "Unable to create contact, SMS is already associated with another Contact", "SMS")
				return
			}
		}
	}

	if c, ok := f.contacts[strings.ToLower(in.Email)]; ok {
		if !in.UpdateEnabled {
			replyError(w, brevo.CodeDuplicateParameter, "Contact already exist")
			return
		}
		c.attrs = in.Attributes
		c.lists = in.ListIDs
		reply(w, http.StatusNoContent, nil)
		return
	}

	f.lastID++
	f.contacts[strings.ToLower(in.Email)] = &fakeContact{id: f.lastID, email: in.Email, attrs: in.Attributes, lists: in.ListIDs}
	reply(w, http.StatusCreated, map[string]int64{"id": f.lastID})
}

func emailParam(r *http.Request) string {
	e, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		return chi.URLParam(r, "email")
	}
	return strings.ToLower(e)
}

func (f *fakeBrevo) getContact(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed(w, "getContact") {
		return
	}

	c, ok := f.contacts[emailParam(r)]
	if !ok {
		reply(w, http.StatusNotFound, map[string]string{"code": brevo.CodeDocumentNotFound, "message": "Contact does not exist"})
		return
	}
	reply(w, http.StatusOK, map[string]interface{}{"id": c.id, "email": c.email, "attributes": c.attrs})
}

func (f *fakeBrevo) updateContact(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed(w, "updateContact") {
		return
	}

	c, ok := f.contacts[emailParam(r)]
	if !ok {
		reply(w, http.StatusNotFound, map[string]string{"code": brevo.CodeDocumentNotFound, "message": "Contact does not exist"})
		return
	}
	var in brevo.UpdateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		replyError(w, "bad_request", err.Error())
		return
	}
	c.attrs = in.Attributes
	c.lists = in.ListIDs
	reply(w, http.StatusNoContent, nil)
}

func (f *fakeBrevo) createCompany(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed(w, "createCompany") {
		return
	}

	var in brevo.CreateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		replyError(w, "bad_request", err.Error())
		return
	}
	for _, c := range f.companies {
		if strings.EqualFold(c.Name, in.Name) {
			replyError(w, brevo.CodeDuplicateParameter, "Company with the same name already exists")
			return
		}
	}

	id := brevo.CompanyID(fmt.Sprintf("65f0%020x", len(f.companies)+1))
	f.companies = append(f.companies, brevo.Company{ID: id, Name: in.Name})
	reply(w, http.StatusOK, map[string]string{"id": string(id)})
}

func (f *fakeBrevo) listCompanies(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed(w, "listCompanies") {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items := []map[string]interface{}{}
	for i := offset; i < len(f.companies) && i < offset+limit; i++ {
		c := f.companies[i]
		items = append(items, map[string]interface{}{"id": c.ID, "attributes": map[string]string{"name": c.Name}})
	}
	reply(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (f *fakeBrevo) link(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed(w, "link") {
		return
	}

	id := brevo.CompanyID(chi.URLParam(r, "id"))
	var in brevo.LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		replyError(w, "bad_request", err.Error())
		return
	}
	for _, c := range in.LinkContactIDs {
		for _, l := range f.links[id] {
			if l == c {
				replyError(w, brevo.CodeDuplicateParameter, "Contact is already linked to the company")
				return
			}
		}
		f.links[id] = append(f.links[id], c)
	}
	reply(w, http.StatusNoContent, nil)
}

func (f *fakeBrevo) createNote(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed(w, "createNote") {
		return
	}

	var in brevo.Note
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		replyError(w, "bad_request", err.Error())
		return
	}
	f.notes = append(f.notes, in)
	reply(w, http.StatusCreated, map[string]string{"id": fmt.Sprintf("note-%d", len(f.notes))})
}

func (f *fakeBrevo) sendEmail(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed(w, "sendEmail") {
		return
	}

	var in brevo.Email
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		replyError(w, "bad_request", err.Error())
		return
	}
	f.emails = append(f.emails, in)
	reply(w, http.StatusCreated, map[string]string{"messageId": fmt.Sprintf("<%d@smtp-relay.mailin.fr>", len(f.emails))})
}
