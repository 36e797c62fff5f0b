package webhook

import (
	"encoding/json"
	"strings"
)

// Text is a form value from the chat-bot. The bot is loose about
// types (ages arrive as numbers, names as HTML links), so anything
// scalar decodes into a string.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*t = ""
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*t = Text(v)
		return nil
	}
	*t = Text(s)
	return nil
}

// Submission is a candidate application delivered by the chat-bot
// webhook. Attachment-capable fields may hold free text or a Telegram
// file id.
type Submission struct {
	FullName Text `json:"full_name_uzbek"`
	Phone    Text `json:"phone_number_uzbek"`
	Age      Text `json:"age_uzbek"`
	City     Text `json:"city_uzbek"`
	Degree   Text `json:"degree"`
	Position Text `json:"position_uz"`
	Username Text `json:"username"`
	Resume   Text `json:"resume"`
	Diploma  Text `json:"diploma"`
	Phase2Q1 Text `json:"phase2_q_1"`
	Phase2Q2 Text `json:"phase2_q_2"`
	Phase2Q3 Text `json:"phase2_q_3"`
}

// Missing lists the required fields absent from the submission.
// Presence is logged, never enforced: a CRM record with gaps still
// beats a dropped candidate.
func (s Submission) Missing() []string {
	var missing []string
	if strings.TrimSpace(string(s.FullName)) == "" {
		missing = append(missing, "full_name_uzbek")
	}
	if strings.TrimSpace(string(s.Phone)) == "" {
		missing = append(missing, "phone_number_uzbek")
	}
	if strings.TrimSpace(string(s.Position)) == "" {
		missing = append(missing, "position_uz")
	}
	return missing
}
