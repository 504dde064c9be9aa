package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fashion-fit-bot/internal/imagedata"
)

const (
	maxMessageBytes = 4096
	maxCaptionBytes = 1024
)

type Options struct {
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Debug      bool

	// MaxDownloadBytes caps garment downloads; 20 MiB when zero.
	MaxDownloadBytes int64
}

type Client struct {
	bot         *tgbotapi.BotAPI
	httpClient  *http.Client
	logger      *slog.Logger
	maxDownload int64
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is nil")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, tgbotapi.APIEndpoint, opts.HTTPClient)
	if err != nil {
		return nil, err
	}
	bot.Debug = opts.Debug

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	maxDownload := opts.MaxDownloadBytes
	if maxDownload <= 0 {
		maxDownload = 20 << 20
	}

	return &Client{
		bot:         bot,
		httpClient:  opts.HTTPClient,
		logger:      logger,
		maxDownload: maxDownload,
	}, nil
}

func (c *Client) Username() string {
	return c.bot.Self.UserName
}

type Update = tgbotapi.Update

type UpdatesOptions struct {
	Timeout time.Duration
}

func (c *Client) Updates(opts UpdatesOptions) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	if opts.Timeout > 0 {
		u.Timeout = int(opts.Timeout.Seconds())
	} else {
		u.Timeout = 30
	}
	return c.bot.GetUpdatesChan(u)
}

func (c *Client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

func (c *Client) SendTyping(chatID int64) {
	_, _ = c.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadPhoto))
}

func (c *Client) SendText(chatID int64, text string) error {
	for _, p := range splitByBytes(text, maxMessageBytes) {
		if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, p)); err != nil {
			return err
		}
	}
	return nil
}

// SendTextWithKeyboard sends a single panel message and returns its id.
func (c *Client) SendTextWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, truncateByBytes(text, maxMessageBytes))
	msg.ReplyMarkup = kb
	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditTextWithKeyboard rewrites a panel in place. Telegram rejects edits that
// change nothing; those count as success.
func (c *Client) EditTextWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, truncateByBytes(text, maxMessageBytes), kb)
	if _, err := c.bot.Send(edit); err != nil {
		if isNotModified(err) {
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) AnswerCallback(callbackID, text string, alert bool) error {
	cfg := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	_, err := c.bot.Request(cfg)
	return err
}

func (c *Client) SendPhotoDataURL(chatID int64, dataURL string, caption string) error {
	file, err := fileFromDataURL(dataURL, "fashion-fit")
	if err != nil {
		return err
	}

	photo := tgbotapi.NewPhoto(chatID, file)
	if caption != "" {
		photo.Caption = truncateByBytes(caption, maxCaptionBytes)
	}

	_, err = c.bot.Send(photo)
	return err
}

// SendDocumentDataURL sends the image uncompressed under the given file name.
func (c *Client) SendDocumentDataURL(chatID int64, dataURL, fileName, caption string) error {
	file, err := fileFromDataURL(dataURL, strings.TrimSuffix(fileName, ".png"))
	if err != nil {
		return err
	}
	if fileName != "" {
		file.Name = fileName
	}

	doc := tgbotapi.NewDocument(chatID, file)
	if caption != "" {
		doc.Caption = truncateByBytes(caption, maxCaptionBytes)
	}

	_, err = c.bot.Send(doc)
	return err
}

// DownloadImage fetches a photo or image document and checks that it decodes
// as an image.
func (c *Client) DownloadImage(ctx context.Context, fileID string) (imagedata.Upload, error) {
	fileURL, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return imagedata.Upload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return imagedata.Upload{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return imagedata.Upload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return imagedata.Upload{}, fmt.Errorf("telegram file download %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxDownload+1))
	if err != nil {
		return imagedata.Upload{}, err
	}
	if int64(len(data)) > c.maxDownload {
		return imagedata.Upload{}, fmt.Errorf("telegram file exceeds %d bytes", c.maxDownload)
	}

	c.logger.Debug("telegram file downloaded", "file_id", fileID, "bytes", len(data))
	return imagedata.FromBytes(data, resp.Header.Get("content-type"))
}

func fileFromDataURL(dataURL, baseName string) (tgbotapi.FileBytes, error) {
	enc, err := imagedata.ParseDataURL(dataURL)
	if err != nil {
		return tgbotapi.FileBytes{}, err
	}
	data, err := enc.Bytes()
	if err != nil {
		return tgbotapi.FileBytes{}, err
	}
	if baseName == "" {
		baseName = "image"
	}
	return tgbotapi.FileBytes{Name: baseName + extensionFor(enc.MIMEType), Bytes: data}, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func splitByBytes(text string, maxBytes int) []string {
	if len(text) <= maxBytes || maxBytes <= 0 {
		return []string{text}
	}

	var out []string
	var buf strings.Builder
	buf.Grow(maxBytes)

	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len(string(r))
		}

		if buf.Len() > 0 && buf.Len()+runeBytes > maxBytes {
			out = append(out, buf.String())
			buf.Reset()
		}
		buf.WriteRune(r)
	}

	if buf.Len() > 0 {
		out = append(out, buf.String())
	}

	return out
}

func truncateByBytes(text string, maxBytes int) string {
	if len(text) <= maxBytes || maxBytes <= 0 {
		return text
	}

	var buf strings.Builder
	buf.Grow(maxBytes)
	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len(string(r))
		}

		if buf.Len()+runeBytes > maxBytes {
			break
		}
		buf.WriteRune(r)
	}
	return buf.String()
}
