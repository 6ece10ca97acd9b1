package contact

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hub612/contactsync/internal/brevo"
	"github.com/hub612/contactsync/internal/survey"
)

// buildNote renders the questionnaire as plain text
func buildNote(sub *Submission) string {

	var b strings.Builder

	fmt.Fprintf(&b, "Diagnostic Start to Scale - %s\n\n", sub.StartupName)
	fmt.Fprintf(&b, "Score global : %d%%\n\n", survey.Percent(survey.GlobalScore(sub.Scores)))

	b.WriteString("Scores par thématique :\n")
	for _, th := range survey.Thematics(sub.Scores) {
		fmt.Fprintf(&b, "- %s : %d%%\n", th, survey.Percent(sub.Scores[th]))
	}

	grouped := make(map[string][]QuestionAnswer)
	for _, qa := range sub.Questions {
		grouped[qa.Thematic] = append(grouped[qa.Thematic], qa)
	}
	thematics := make([]string, 0, len(grouped))
	for th := range grouped {
		thematics = append(thematics, th)
	}
	sort.Strings(thematics)

	b.WriteString("\nRéponses :\n")
	for _, th := range thematics {
		fmt.Fprintf(&b, "\n[%s]\n", th)
		for i, qa := range grouped[th] {
			fmt.Fprintf(&b, "%d. %s\n", i+1, qa.Question.Text)
			if qa.Question.Description != "" {
				fmt.Fprintf(&b, "   %s\n", qa.Question.Description)
			}
			fmt.Fprintf(&b, "   Réponse : %s\n", qa.Answer.Label())
		}
	}

	if sub.Message != "" {
		fmt.Fprintf(&b, "\nMessage :\n%s\n", sub.Message)
	}

	return b.String()
}

// attachNote posts the questionnaire note. Failures are only logged.
func (h *Handler) attachNote(ctx context.Context, log *zap.Logger, sub *Submission, contact int64, company brevo.CompanyID) {

	n := brevo.Note{Text: buildNote(sub), ContactIDs: []int64{contact}}
	if company != "" {
		n.CompanyIDs = []brevo.CompanyID{company}
	}

	id, err := h.crm.CreateNote(ctx, n)
	if err != nil {
		log.Error("could not create questionnaire note", zap.Error(err))
		return
	}
	log.Info("questionnaire note created", zap.String("note_id", id), zap.Int("questions", len(sub.Questions)))
}
