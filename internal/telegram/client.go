// Package telegram resolves attachment file ids through the Bot API.
// Metadata goes through tgbotapi's getFile; the raw byte download runs
// on a separate HTTP client so the two calls carry different timeouts.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Client struct {
	bot      *tgbotapi.BotAPI
	token    string
	fileBase string
	download *http.Client
	log      *zap.Logger
}

// File is the getFile result the resolver consumes.
type File struct {
	FileID       string
	FileUniqueID string
	FileSize     int64
	FilePath     string
}

// NewClient wires a tgbotapi bot for metadata calls plus a plain HTTP
// client for byte downloads. tgbotapi validates the token with a getMe
// round-trip, so a bad token or unreachable API fails here, at boot.
func NewClient(token, apiBase, fileBase string, metaTimeout, downloadTimeout time.Duration, log *zap.Logger) (*Client, error) {
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	fileBase = strings.TrimRight(strings.TrimSpace(fileBase), "/")
	if fileBase == "" {
		fileBase = apiBase
	}
	if log == nil {
		log = zap.NewNop()
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, apiBase+"/bot%s/%s", &http.Client{Timeout: metaTimeout})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	return &Client{
		bot:      bot,
		token:    token,
		fileBase: fileBase,
		download: &http.Client{Timeout: downloadTimeout},
		log:      log,
	}, nil
}

// GetFile resolves a file id into its server-side path.
func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	f, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return File{}, fmt.Errorf("getFile: %w", err)
	}
	if f.FilePath == "" {
		return File{}, fmt.Errorf("getFile returned empty file_path for %s", fileID)
	}

	c.log.Debug("file metadata resolved",
		zap.String("file_path", f.FilePath),
		zap.Int("file_size", f.FileSize))

	return File{
		FileID:       f.FileID,
		FileUniqueID: f.FileUniqueID,
		FileSize:     int64(f.FileSize),
		FilePath:     f.FilePath,
	}, nil
}

// Download fetches the file bytes for a path obtained from GetFile.
func (c *Client) Download(ctx context.Context, filePath string) ([]byte, error) {
	u := c.DirectFileURL(filePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := c.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d downloading %s", resp.StatusCode, filePath)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// DirectFileURL builds the token-embedding download URL. Telegram
// rotates file paths, so the link is ephemeral; the resolver uses it
// only as a fallback when durable storage fails.
func (c *Client) DirectFileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.fileBase, c.token, strings.TrimLeft(filePath, "/"))
}

// GuessMIME infers a content type from the file extension in a
// Telegram file path.
func GuessMIME(filePath string) string {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".ogg":
		return "audio/ogg"
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
