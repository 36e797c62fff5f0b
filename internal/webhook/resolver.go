package webhook

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ishbor_bitrix/internal/normalize"
	"ishbor_bitrix/internal/repo"
	"ishbor_bitrix/internal/telegram"
)

// TelegramAPI is the slice of the Bot API the resolver needs.
type TelegramAPI interface {
	GetFile(ctx context.Context, fileID string) (telegram.File, error)
	Download(ctx context.Context, filePath string) ([]byte, error)
	DirectFileURL(filePath string) string
}

// FileStore persists resolved attachment bytes.
type FileStore interface {
	SaveFile(ctx context.Context, f repo.StoredFile) (int64, error)
}

// Attachment is the outcome of resolving one file-bearing field.
// Exactly one of URL/Text is set for non-empty inputs: URL when the
// value was file-id-shaped (permanent /files/{id} link, or an
// ephemeral Telegram link when Stored is false), Text for plain
// answers passed through unchanged.
type Attachment struct {
	URL    string
	Text   string
	Stored bool
}

// attachments holds the five resolvable fields in submission order.
type attachments struct {
	Resume   Attachment
	Diploma  Attachment
	Phase2Q1 Attachment
	Phase2Q2 Attachment
	Phase2Q3 Attachment
}

// resolveAttachments handles the five fields concurrently. Failures
// never propagate: each field independently degrades to the direct
// Telegram URL.
func (s *Service) resolveAttachments(ctx context.Context, sub Submission) attachments {
	fields := []struct {
		name  string
		value Text
		out   *Attachment
	}{
		{"resume", sub.Resume, nil},
		{"diploma", sub.Diploma, nil},
		{"phase2_q_1", sub.Phase2Q1, nil},
		{"phase2_q_2", sub.Phase2Q2, nil},
		{"phase2_q_3", sub.Phase2Q3, nil},
	}

	var atts attachments
	fields[0].out = &atts.Resume
	fields[1].out = &atts.Diploma
	fields[2].out = &atts.Phase2Q1
	fields[3].out = &atts.Phase2Q2
	fields[4].out = &atts.Phase2Q3

	g, ctx := errgroup.WithContext(ctx)
	for _, f := range fields {
		g.Go(func() error {
			*f.out = s.resolveOne(ctx, f.name, string(f.value))
			return nil
		})
	}
	_ = g.Wait()

	return atts
}

func (s *Service) resolveOne(ctx context.Context, field, value string) Attachment {
	value = normalize.StripBOM(value)
	if value == "" || !normalize.IsTelegramFileID(value) {
		return Attachment{Text: value}
	}

	log := s.log.With(zap.String("field", field))

	meta, err := s.tg.GetFile(ctx, value)
	if err != nil {
		log.Warn("telegram getFile failed, falling back to direct url", zap.Error(err))
		attachmentsResolved.WithLabelValues("fallback").Inc()
		return Attachment{URL: s.tg.DirectFileURL(value)}
	}

	data, err := s.tg.Download(ctx, meta.FilePath)
	if err != nil {
		log.Warn("telegram download failed, falling back to direct url", zap.Error(err))
		attachmentsResolved.WithLabelValues("fallback").Inc()
		return Attachment{URL: s.tg.DirectFileURL(meta.FilePath)}
	}

	id, err := s.files.SaveFile(ctx, repo.StoredFile{
		Filename: path.Base(meta.FilePath),
		Mimetype: telegram.GuessMIME(meta.FilePath),
		Size:     int64(len(data)),
		Data:     data,
	})
	if err != nil {
		log.Warn("storing attachment failed, falling back to direct url", zap.Error(err))
		attachmentsResolved.WithLabelValues("fallback").Inc()
		return Attachment{URL: s.tg.DirectFileURL(meta.FilePath)}
	}

	log.Info("attachment stored", zap.Int64("file_id", id), zap.Int("size", len(data)))
	attachmentsResolved.WithLabelValues("stored").Inc()
	return Attachment{
		URL:    fmt.Sprintf("%s/files/%d", s.publicBaseURL, id),
		Stored: true,
	}
}
