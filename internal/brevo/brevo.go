// Package brevo is a typed client for the subset of the Brevo v3 API used to sync contact form submissions.
package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/hub612/contactsync/internal/caller"
)

// Client calls Brevo endpoints. API failures come back as *APIError.
type Client struct {
	http *caller.Client
}

// New returns a Client
func New(c *caller.Client) *Client {
	return &Client{http: c}
}

// ContactAttributes are the contact fields written on every upsert
type ContactAttributes struct {
	FirstName string `json:"FIRSTNAME"`
	LastName  string `json:"LASTNAME"`
	Startup   string `json:"STARTUP"`
	Company   string `json:"COMPANY"`
	Message   string `json:"MESSAGE"`
	SMS       string `json:"SMS,omitempty"`
	Telephone string `json:"TELEPHONE,omitempty"`
}

// WithoutPhone drops the phone attributes
func (a ContactAttributes) WithoutPhone() ContactAttributes {
	a.SMS = ""
	a.Telephone = ""
	return a
}

// HasPhone reports whether a phone attribute is set
func (a ContactAttributes) HasPhone() bool {
	return a.SMS != "" || a.Telephone != ""
}

// CreateContactRequest is the POST /contacts payload
type CreateContactRequest struct {
	Email         string            `json:"email"`
	Attributes    ContactAttributes `json:"attributes"`
	ListIDs       []int64           `json:"listIds,omitempty"`
	UpdateEnabled bool              `json:"updateEnabled"`
}

// UpdateContactRequest is the PUT /contacts/{email} payload
type UpdateContactRequest struct {
	Attributes ContactAttributes `json:"attributes"`
	ListIDs    []int64           `json:"listIds,omitempty"`
}

// Contact is an existing CRM contact
type Contact struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// CompanyID is Brevo's opaque company identifier
type CompanyID string

// Company is a CRM company
type Company struct {
	ID   CompanyID
	Name string
}

// CreateCompanyRequest is the POST /companies payload
type CreateCompanyRequest struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
}

// LinkRequest is the PATCH /companies/link-unlink/{id} payload
type LinkRequest struct {
	LinkContactIDs []int64 `json:"linkContactIds"`
}

// Note is the POST /crm/notes payload
type Note struct {
	Text       string      `json:"text"`
	ContactIDs []int64     `json:"contactIds,omitempty"`
	CompanyIDs []CompanyID `json:"companyIds,omitempty"`
}

// Address is an email participant
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Email is the POST /smtp/email payload
type Email struct {
	Sender      Address   `json:"sender"`
	To          []Address `json:"to"`
	ReplyTo     *Address  `json:"replyTo,omitempty"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent,omitempty"`
	TextContent string    `json:"textContent,omitempty"`
}

// CreateContact creates or, with UpdateEnabled, updates a contact. The id is 0 when Brevo updated an existing contact.
func (c *Client) CreateContact(ctx context.Context, in CreateContactRequest) (int64, error) {

	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, "contacts", nil, in, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// GetContact fetches a contact by email
func (c *Client) GetContact(ctx context.Context, email string) (*Contact, error) {

	var out Contact
	if err := c.call(ctx, http.MethodGet, contactPath(email), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateContact updates a contact by email
func (c *Client) UpdateContact(ctx context.Context, email string, in UpdateContactRequest) error {
	return c.call(ctx, http.MethodPut, contactPath(email), nil, in, nil)
}

// CreateCompany creates a company and returns its id
func (c *Client) CreateCompany(ctx context.Context, name string) (CompanyID, error) {

	in := CreateCompanyRequest{Name: name, Attributes: map[string]string{}}

	var raw json.RawMessage
	if err := c.call(ctx, http.MethodPost, "companies", nil, in, &raw); err != nil {
		return "", err
	}

	id := gjson.GetBytes(raw, "id").String()
	if id == "" {
		return "", eris.New("could not find an identifier in Brevo response")
	}
	return CompanyID(id), nil
}

// ListCompanies returns one page of companies
func (c *Client) ListCompanies(ctx context.Context, limit, offset int) ([]Company, error) {

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, "companies", q, nil, &raw); err != nil {
		return nil, err
	}

	// older accounts answer with "companies", current ones with "items"
	list := gjson.GetBytes(raw, "companies")
	if !list.Exists() {
		list = gjson.GetBytes(raw, "items")
	}

	var out []Company
	list.ForEach(func(_, v gjson.Result) bool {
		name := v.Get("name")
		if !name.Exists() {
			name = v.Get("attributes.name")
		}
		out = append(out, Company{ID: CompanyID(v.Get("id").String()), Name: name.String()})
		return true
	})
	return out, nil
}

// LinkContacts links or unlinks contacts on a company
func (c *Client) LinkContacts(ctx context.Context, id CompanyID, in LinkRequest) error {
	return c.call(ctx, http.MethodPatch, "companies/link-unlink/"+url.PathEscape(string(id)), nil, in, nil)
}

// CreateNote attaches a note and returns its id
func (c *Client) CreateNote(ctx context.Context, in Note) (string, error) {

	var raw json.RawMessage
	if err := c.call(ctx, http.MethodPost, "crm/notes", nil, in, &raw); err != nil {
		return "", err
	}
	return gjson.GetBytes(raw, "id").String(), nil
}

// SendEmail sends a transactional email and returns its message id
func (c *Client) SendEmail(ctx context.Context, in Email) (string, error) {

	var out struct {
		MessageID string `json:"messageId"`
	}
	if err := c.call(ctx, http.MethodPost, "smtp/email", nil, in, &out); err != nil {
		return "", err
	}
	return out.MessageID, nil
}

// contactPath escapes the email as a path segment; "+" is escaped too so it is never read as a space
func contactPath(email string) string {
	return "contacts/" + strings.ReplaceAll(url.PathEscape(email), "+", "%2B")
}

// call marshals in, sends the request and decodes a 2xx body into out
func (c *Client) call(ctx context.Context, method, path string, q url.Values, in, out interface{}) error {

	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "could not marshal Brevo payload")
		}
		body = b
	}

	req, err := c.http.NewRequest(ctx, method, path, q, body)
	if err != nil {
		return eris.Wrap(err, "could not make request")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "could not call Brevo %s %s", method, req.URL.Path)
	}
	defer res.Body.Close()

	rb, err := io.ReadAll(res.Body)
	if err != nil {
		return eris.Wrap(err, "could not read Brevo response body")
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return parseAPIError(res.StatusCode, rb)
	}

	if out == nil || len(bytes.TrimSpace(rb)) == 0 {
		return nil
	}
	if err := json.Unmarshal(rb, out); err != nil {
		return eris.Wrap(err, "could not decode Brevo response")
	}
	return nil
}
