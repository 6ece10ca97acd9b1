// Package contact receives contact form submissions and syncs them into Brevo:
// it upserts the contact, links it to the startup's company, attaches the
// questionnaire as a note and sends a thank-you email.
package contact

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hub612/contactsync/internal/brevo"
	"github.com/hub612/contactsync/internal/caller"
	"github.com/hub612/contactsync/internal/config"
	"github.com/hub612/contactsync/internal/phone"
)

// CRM is an abstraction for the Brevo client
type CRM interface {
	CreateContact(ctx context.Context, in brevo.CreateContactRequest) (int64, error)
	GetContact(ctx context.Context, email string) (*brevo.Contact, error)
	UpdateContact(ctx context.Context, email string, in brevo.UpdateContactRequest) error
	CreateCompany(ctx context.Context, name string) (brevo.CompanyID, error)
	ListCompanies(ctx context.Context, limit, offset int) ([]brevo.Company, error)
	LinkContacts(ctx context.Context, id brevo.CompanyID, in brevo.LinkRequest) error
	CreateNote(ctx context.Context, in brevo.Note) (string, error)
	SendEmail(ctx context.Context, in brevo.Email) (string, error)
}

// Handler respresents the handler type
type Handler struct {
	cfg   *config.Config
	crm   CRM
	phone *phone.Normalizer
	log   *zap.Logger
}

// NewHandler returns a new Handler
func NewHandler(cfg *config.Config, crm CRM, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{cfg: cfg, crm: crm, log: log}
	if cfg != nil {
		h.phone = phone.NewNormalizer(cfg.Phone.DefaultCountryCode)
	}
	return h
}

// NewFromConfig wires a Handler to the Brevo API described by cfg
func NewFromConfig(cfg *config.Config, log *zap.Logger) (*Handler, error) {

	c, err := caller.New(caller.Options{
		BaseURL:  cfg.Brevo.BaseURL,
		APIKey:   cfg.Brevo.APIKey,
		Timeout:  cfg.Brevo.Timeout,
		RetryMax: cfg.Brevo.RetryMax,
		Logger:   log,
	})
	if err != nil {
		return nil, eris.Wrap(err, "could not create Brevo client")
	}
	return NewHandler(cfg, brevo.New(c), log), nil
}

// Failure is a terminal outcome reported to the caller
type Failure struct {
	Status  int
	Message string
	Details string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Result is the success body
type Result struct {
	Success       bool       `json:"success"`
	MessageID     string     `json:"messageId"`
	ContactAdded  bool       `json:"contactAdded"`
	ContactID     *int64     `json:"contactId"`
	CompanyID     companyRef `json:"companyId"`
	CompanyLinked bool       `json:"companyLinked"`
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// companyRef renders a company id as a JSON number when Brevo gave a numeric one, null when absent
type companyRef brevo.CompanyID

// maxSafeInteger is the largest integer a JavaScript client reads exactly
const maxSafeInteger = 1<<53 - 1

func (c companyRef) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("null"), nil
	}
	// only canonical, exactly representable integers become numbers
	if n, err := strconv.ParseInt(string(c), 10, 64); err == nil && n >= 0 && n <= maxSafeInteger && strconv.FormatInt(n, 10) == string(c) {
		return []byte(c), nil
	}
	return json.Marshal(string(c))
}

// Handle deals with the incoming request
func (h *Handler) Handle(ctx context.Context, request *events.APIGatewayProxyRequest) (res events.APIGatewayProxyResponse, err error) {

	log := h.log.With(zap.String("request_id", requestID(request)))

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing contact form", zap.Any("panic", r), zap.Stack("stack"))
			res = respond(http.StatusInternalServerError, errorBody{Error: "Internal server error", Details: fmt.Sprint(r)})
			err = nil
		}
	}()

	if request.HTTPMethod != http.MethodPost {
		return respond(http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"}), nil
	}

	if h.cfg == nil {
		log.Error("handler has no configuration")
		return respond(http.StatusInternalServerError, errorBody{Error: "Server configuration error"}), nil
	}
	if err := h.cfg.Validate(); err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return respond(http.StatusInternalServerError, errorBody{Error: "Server configuration error"}), nil
	}

	body, err := requestBody(request)
	if err != nil {
		log.Info("could not decode request body", zap.Error(err))
		return respond(http.StatusBadRequest, errorBody{Error: "Invalid request body"}), nil
	}

	sub, err := parseSubmission(body)
	if err != nil {
		return h.fail(log, err), nil
	}
	log = log.With(zap.String("startup", sub.StartupName))

	out, err := h.sync(ctx, log, sub)
	if err != nil {
		return h.fail(log, err), nil
	}

	log.Info("contact form processed",
		zap.Bool("contact_added", out.ContactAdded),
		zap.Bool("company_linked", out.CompanyLinked),
		zap.String("message_id", out.MessageID),
	)
	return respond(http.StatusOK, out), nil
}

// fail turns an error into a response, hiding nothing but the stack
func (h *Handler) fail(log *zap.Logger, err error) events.APIGatewayProxyResponse {

	var f *Failure
	if errors.As(err, &f) {
		log.Warn("contact form rejected", zap.Int("status", f.Status), zap.Error(err))
		return respond(f.Status, errorBody{Error: f.Message, Details: f.Details})
	}

	log.Error("could not process contact form", zap.Error(err))
	return respond(http.StatusInternalServerError, errorBody{Error: "Internal server error", Details: err.Error()})
}

func respond(status int, v interface{}) events.APIGatewayProxyResponse {

	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"Internal server error"}`)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}

func requestBody(request *events.APIGatewayProxyRequest) (string, error) {
	if !request.IsBase64Encoded {
		return request.Body, nil
	}
	b, err := base64.StdEncoding.DecodeString(request.Body)
	if err != nil {
		return "", eris.Wrap(err, "could not decode base64 body")
	}
	return string(b), nil
}

func requestID(request *events.APIGatewayProxyRequest) string {
	if id := request.RequestContext.RequestID; id != "" {
		return id
	}
	return uuid.NewString()
}
