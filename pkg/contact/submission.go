package contact

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/hub612/contactsync/internal/survey"
)

// Submission is a contact form post
type Submission struct {
	StartupName string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Message     string
	Questions   []QuestionAnswer
	Scores      map[string]float64
}

// Question is a diagnostic question as shown to the visitor
type Question struct {
	ID          uuid.UUID
	Text        string
	Description string
	Thematic    string
}

// QuestionAnswer pairs a question with the visitor's answer
type QuestionAnswer struct {
	Question Question
	Thematic string
	Answer   survey.Answer
}

// FullName joins first and last name
func (s *Submission) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// hasQuestionnaire reports whether a note can be built
func (s *Submission) hasQuestionnaire() bool {
	return len(s.Questions) > 0 && len(s.Scores) > 0
}

const missingFieldsMessage = "Missing required fields: startup_name, contact_firstname, contact_lastname, contact_email"

// parseSubmission gets values from the request body and checks required fields
func parseSubmission(input string) (*Submission, error) {

	if !gjson.Valid(input) || !gjson.Parse(input).IsObject() {
		return nil, &Failure{Status: http.StatusBadRequest, Message: "Invalid request body"}
	}
	body := gjson.Parse(input)

	s := &Submission{
		StartupName: trimmed(body, "startup_name"),
		FirstName:   trimmed(body, "contact_firstname"),
		LastName:    trimmed(body, "contact_lastname"),
		Email:       trimmed(body, "contact_email"),
		Phone:       trimmed(body, "contact_phone"),
		Message:     trimmed(body, "message"),
	}

	// older front-ends post a single name field
	if s.FirstName == "" && s.LastName == "" {
		s.FirstName, s.LastName = splitName(trimmed(body, "contact_name"))
	}

	if missing := s.missing(); len(missing) > 0 {
		return nil, &Failure{
			Status:  http.StatusBadRequest,
			Message: missingFieldsMessage,
			Details: "missing: " + strings.Join(missing, ", "),
		}
	}

	body.Get("questions").ForEach(func(_, v gjson.Result) bool {
		s.Questions = append(s.Questions, parseQuestion(v))
		return true
	})

	body.Get("scores").ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.Number {
			if s.Scores == nil {
				s.Scores = make(map[string]float64)
			}
			s.Scores[k.String()] = v.Float()
		}
		return true
	})

	return s, nil
}

func (s *Submission) missing() []string {
	var out []string
	for _, f := range []struct{ name, value string }{
		{"startup_name", s.StartupName},
		{"contact_firstname", s.FirstName},
		{"contact_lastname", s.LastName},
		{"contact_email", s.Email},
	} {
		if f.value == "" {
			out = append(out, f.name)
		}
	}
	return out
}

func parseQuestion(v gjson.Result) QuestionAnswer {

	// malformed ids are tolerated, they are never sent to the CRM
	id, err := uuid.Parse(v.Get("question.id").String())
	if err != nil {
		id = uuid.Nil
	}

	q := Question{
		ID:          id,
		Text:        strings.TrimSpace(v.Get("question.text").String()),
		Description: strings.TrimSpace(v.Get("question.description").String()),
		Thematic:    v.Get("question.thematic").String(),
	}

	thematic := v.Get("thematic").String()
	if thematic == "" {
		thematic = q.Thematic
	}

	return QuestionAnswer{
		Question: q,
		Thematic: thematic,
		Answer:   survey.ParseAnswer(v.Get("answer").String()),
	}
}

func trimmed(body gjson.Result, path string) string {
	return strings.TrimSpace(body.Get(path).String())
}

// splitName puts the first word in first name and the rest in last name
func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
