// Package webhook implements the candidate-application pipeline:
// normalize the chat-bot form, rehost Telegram attachments, then
// upsert the matching Bitrix24 contact and deal.
package webhook

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ishbor_bitrix/internal/bitrix"
	"ishbor_bitrix/internal/config"
	"ishbor_bitrix/internal/normalize"
)

// CRM is the slice of the Bitrix24 client the pipeline uses.
type CRM interface {
	FindContactIDByPhone(ctx context.Context, phone string) (int64, bool, error)
	AddContact(ctx context.Context, fields map[string]any) (int64, error)
	UpdateContact(ctx context.Context, id int64, fields map[string]any) error
	FindDealIDByContact(ctx context.Context, contactID int64) (int64, bool, error)
	AddDeal(ctx context.Context, fields map[string]any) (int64, error)
	UpdateDeal(ctx context.Context, id int64, fields map[string]any) error
}

// Result is the webhook response body.
type Result struct {
	Message   string `json:"message"`
	ContactID int64  `json:"contactId"`
	DealID    int64  `json:"dealId"`
}

type Service struct {
	crm   CRM
	tg    TelegramAPI
	files FileStore
	log   *zap.Logger

	fields        config.FieldCodes
	publicBaseURL string
	dealCategory  int
	dealStage     string
	dealSource    string

	contacts *lookupCache
	deals    *lookupCache
}

func NewService(crm CRM, tg TelegramAPI, files FileStore, cfg config.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		crm:           crm,
		tg:            tg,
		files:         files,
		log:           log,
		fields:        cfg.Fields,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		dealCategory:  cfg.Bitrix.DealCategoryID,
		dealStage:     cfg.Bitrix.DealStageID,
		dealSource:    cfg.Bitrix.DealSourceID,
		contacts:      newLookupCache(cfg.CacheTTL),
		deals:         newLookupCache(cfg.CacheTTL),
	}
}

// Process runs one submission through the pipeline. Attachment and
// lookup failures degrade locally; contact/deal mutation failures
// propagate to the caller.
func (s *Service) Process(ctx context.Context, sub Submission) (Result, error) {
	if missing := sub.Missing(); len(missing) > 0 {
		s.log.Warn("submission missing required fields", zap.Strings("fields", missing))
	}

	phone := normalize.Phone(string(sub.Phone))
	name := normalize.StripBOM(normalize.LinkText(string(sub.FullName)))
	position := normalize.StripBOM(normalize.LinkText(string(sub.Position)))

	atts := s.resolveAttachments(ctx, sub)
	fields := s.contactFields(name, phone, sub, atts)

	contactID, contactCreated, err := s.upsertContact(ctx, phone, fields)
	if err != nil {
		webhooksProcessed.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("contact upsert: %w", err)
	}

	dealID, err := s.upsertDeal(ctx, contactID, name, position)
	if err != nil {
		webhooksProcessed.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("deal upsert: %w", err)
	}

	msg := "Contact and Deal updated in Bitrix24"
	if contactCreated {
		msg = "Contact and Deal created in Bitrix24"
	}

	webhooksProcessed.WithLabelValues("ok").Inc()
	s.log.Info("submission processed",
		zap.Int64("contact_id", contactID),
		zap.Int64("deal_id", dealID),
		zap.Bool("contact_created", contactCreated))

	return Result{Message: msg, ContactID: contactID, DealID: dealID}, nil
}

// contactFields assembles the Bitrix field dictionary from normalized
// values and resolved attachments.
func (s *Service) contactFields(name, phone string, sub Submission, atts attachments) map[string]any {
	fields := map[string]any{
		"NAME":   name,
		"OPENED": "Y",
	}
	if phone != "" {
		fields["PHONE"] = []bitrix.PhoneField{{Value: phone, ValueType: "WORK"}}
	}

	age := normalize.StripBOM(string(sub.Age))
	setIf(fields, s.fields.Age, age)
	setIf(fields, s.fields.City, normalize.StripBOM(normalize.LinkText(string(sub.City))))
	setIf(fields, s.fields.Degree, normalize.StripBOM(string(sub.Degree)))
	setIf(fields, s.fields.Position, normalize.StripBOM(normalize.LinkText(string(sub.Position))))
	setIf(fields, s.fields.Username, normalize.StripBOM(normalize.LinkText(string(sub.Username))))

	setAttachment(fields, s.fields.ResumeURL, s.fields.ResumeNote, "Resume", atts.Resume)
	setAttachment(fields, s.fields.DiplomaURL, s.fields.DiplomaNote, "Diploma", atts.Diploma)
	setAttachment(fields, s.fields.Phase2Q1URL, s.fields.Phase2Q1Note, "Question 1", atts.Phase2Q1)
	setAttachment(fields, s.fields.Phase2Q2URL, s.fields.Phase2Q2Note, "Question 2", atts.Phase2Q2)
	setAttachment(fields, s.fields.Phase2Q3URL, s.fields.Phase2Q3Note, "Question 3", atts.Phase2Q3)

	var lines []string
	for _, a := range []struct {
		label string
		att   Attachment
	}{
		{"Resume", atts.Resume},
		{"Diploma", atts.Diploma},
		{"Question 1", atts.Phase2Q1},
		{"Question 2", atts.Phase2Q2},
		{"Question 3", atts.Phase2Q3},
	} {
		if a.att.URL != "" {
			lines = append(lines, a.label+": "+a.att.URL)
		}
	}
	if age != "" {
		lines = append(lines, "Age: "+age)
	}
	if len(lines) > 0 {
		fields["COMMENTS"] = strings.Join(lines, "\n")
	}

	return fields
}

func setIf(fields map[string]any, code, value string) {
	if code == "" || value == "" {
		return
	}
	fields[code] = value
}

// setAttachment writes the URL field plus the parallel human-readable
// note field; plain-text answers land in the note field only.
func setAttachment(fields map[string]any, urlCode, noteCode, label string, att Attachment) {
	switch {
	case att.URL != "":
		setIf(fields, urlCode, att.URL)
		setIf(fields, noteCode, label+": "+att.URL)
	case att.Text != "":
		setIf(fields, noteCode, att.Text)
	}
}

// upsertContact looks up by normalized phone and updates in place, or
// creates a new contact. Lookup errors are downgraded to "not found"
// so a flaky list call cannot drop a candidate; the trade-off is a
// possible duplicate record, which is logged and counted.
func (s *Service) upsertContact(ctx context.Context, phone string, fields map[string]any) (int64, bool, error) {
	if phone != "" {
		if id, ok := s.contacts.get(phone); ok {
			err := s.crm.UpdateContact(ctx, id, fields)
			if err == nil {
				contactOps.WithLabelValues("updated").Inc()
				return id, false, nil
			}
			// The cached id may be stale (record deleted CRM-side);
			// drop it and re-resolve through the lookup path.
			s.contacts.evict(phone)
			s.log.Warn("cached contact update failed, re-resolving",
				zap.Int64("contact_id", id), zap.Error(err))
		}

		id, found, err := s.crm.FindContactIDByPhone(ctx, phone)
		if err != nil {
			s.log.Warn("contact lookup failed, treating as not found", zap.Error(err))
			lookupDowngrades.Inc()
			found = false
		}
		if found {
			if err := s.crm.UpdateContact(ctx, id, fields); err != nil {
				return 0, false, err
			}
			s.contacts.put(phone, id)
			contactOps.WithLabelValues("updated").Inc()
			return id, false, nil
		}
	}

	id, err := s.crm.AddContact(ctx, fields)
	if err != nil {
		return 0, false, err
	}
	s.contacts.put(phone, id)
	contactOps.WithLabelValues("created").Inc()
	return id, true, nil
}

// upsertDeal keeps exactly one deal linked to the contact. Creation
// carries the fixed category/stage/source; updates only refresh the
// title and linkage.
func (s *Service) upsertDeal(ctx context.Context, contactID int64, name, position string) (int64, error) {
	title := strings.TrimSpace(name + " - " + position)
	title = strings.Trim(title, "- ")
	if title == "" {
		title = "Candidate application"
	}

	fields := map[string]any{
		"TITLE":      title,
		"CONTACT_ID": contactID,
	}

	cacheKey := strconv.FormatInt(contactID, 10)
	if id, ok := s.deals.get(cacheKey); ok {
		err := s.crm.UpdateDeal(ctx, id, fields)
		if err == nil {
			dealOps.WithLabelValues("updated").Inc()
			return id, nil
		}
		s.deals.evict(cacheKey)
		s.log.Warn("cached deal update failed, re-resolving",
			zap.Int64("deal_id", id), zap.Error(err))
	}

	id, found, err := s.crm.FindDealIDByContact(ctx, contactID)
	if err != nil {
		s.log.Warn("deal lookup failed, treating as not found", zap.Error(err))
		lookupDowngrades.Inc()
		found = false
	}
	if found {
		if err := s.crm.UpdateDeal(ctx, id, fields); err != nil {
			return 0, err
		}
		s.deals.put(cacheKey, id)
		dealOps.WithLabelValues("updated").Inc()
		return id, nil
	}

	fields["CATEGORY_ID"] = s.dealCategory
	fields["STAGE_ID"] = s.dealStage
	fields["SOURCE_ID"] = s.dealSource

	id, err = s.crm.AddDeal(ctx, fields)
	if err != nil {
		return 0, err
	}
	s.deals.put(cacheKey, id)
	dealOps.WithLabelValues("created").Inc()
	return id, nil
}
