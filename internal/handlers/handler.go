package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fashion-fit-bot/internal/fitting"
	"fashion-fit-bot/internal/imagedata"
	"fashion-fit-bot/internal/mediagroup"
	"fashion-fit-bot/internal/session"
	"fashion-fit-bot/internal/telegram"
)

// Messenger is the part of the Telegram client the studio talks to.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error)
	EditTextWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendTyping(chatID int64)
	SendPhotoDataURL(chatID int64, dataURL string, caption string) error
	SendDocumentDataURL(chatID int64, dataURL, fileName, caption string) error
	DownloadImage(ctx context.Context, fileID string) (imagedata.Upload, error)
}

// Generator produces a model shot from a garment data URL.
type Generator interface {
	GenerateModelFit(ctx context.Context, imageDataURL string, cfg fitting.StylingConfig) (string, error)
}

type Options struct {
	Telegram  Messenger
	Generator Generator
	Sessions  *session.Store
	Logger    *slog.Logger
}

type Handler struct {
	tg         Messenger
	gen        Generator
	sessions   *session.Store
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
	now        func() time.Time
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewStore(session.Options{})
	}

	return &Handler{
		tg:       opts.Telegram,
		gen:      opts.Generator,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, msg)
	}

	if len(msg.Photo) > 0 {
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		if h.aggregator != nil && h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			MediaGroupID: msg.MediaGroupID,
			MessageID:    msg.MessageID,
			FileID:       fileID,
		}) {
			return nil
		}
		return h.selectGarment(chatID, userID, fileID)
	}

	if doc := msg.Document; doc != nil {
		if !strings.HasPrefix(strings.ToLower(doc.MimeType), "image/") {
			return h.tg.SendText(chatID, "❌ "+invalidImageText)
		}
		return h.selectGarment(chatID, userID, doc.FileID)
	}

	if strings.TrimSpace(msg.Text) != "" {
		return h.tg.SendText(chatID, "📷 Send a garment photo, or use /fit to open the studio.")
	}
	return nil
}

// HandleAlbum uses the first photo of an album as the garment.
func (h *Handler) HandleAlbum(ctx context.Context, album mediagroup.Album) {
	fileID := album.First()
	if fileID == "" {
		return
	}
	if err := h.selectGarment(album.ChatID, album.UserID, fileID); err != nil {
		h.logger.Error("album intake failed", "err", err)
		return
	}
	if len(album.FileIDs) > 1 {
		_ = h.tg.SendText(album.ChatID, "ℹ️ Only the first photo of an album is used as the garment.")
	}
}

func (h *Handler) handleCommand(ctx context.Context, chatID, userID int64, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID, helpText)
	case "fit":
		return h.openStudio(chatID, userID, msg.CommandArguments())
	case "prompt":
		sess := h.sessions.Get(chatID, userID)
		return h.tg.SendText(chatID, fitting.BuildPrompt(sess.Styling))
	case "reset":
		sess, err := h.sessions.Reset(chatID, userID)
		if err != nil {
			return h.tg.SendText(chatID, "⏳ "+busyText)
		}
		return h.renderPanel(chatID, userID, sess, false)
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

func (h *Handler) openStudio(chatID, userID int64, args string) error {
	var unknown []string
	sess, err := h.sessions.Transition(chatID, userID, func(s *session.Session) error {
		if s.Request.InFlight() && strings.TrimSpace(args) != "" {
			return fitting.ErrAlreadyGenerating
		}
		s.Styling, unknown = fitting.ParseArgs(args, s.Styling)
		s.Menu = session.MenuMain
		s.AwaitingPhoto = !s.HasPhoto()
		return nil
	})
	if err != nil {
		return h.tg.SendText(chatID, "⏳ "+busyText)
	}

	if len(unknown) > 0 {
		_ = h.tg.SendText(chatID, "⚠️ Ignored: "+strings.Join(unknown, ", "))
	}
	return h.renderPanel(chatID, userID, sess, true)
}

// selectGarment stores a new garment photo. Any previous result or failure is
// cleared; a running generation keeps its photo.
func (h *Handler) selectGarment(chatID, userID int64, fileID string) error {
	sess, err := h.sessions.Transition(chatID, userID, func(s *session.Session) error {
		if err := s.Request.Reset(); err != nil {
			return err
		}
		s.PhotoFileID = fileID
		s.AwaitingPhoto = false
		s.Menu = session.MenuMain
		return nil
	})
	if err != nil {
		return h.tg.SendText(chatID, "⏳ "+busyText)
	}
	return h.renderPanel(chatID, userID, sess, sess.MessageID == 0)
}

// renderPanel edits the studio message in place, or sends a new one when
// there is none or the edit fails.
func (h *Handler) renderPanel(chatID, userID int64, sess session.Session, forceNew bool) error {
	text := panelText(sess)
	kb := panelKeyboard(userID, sess)

	if !forceNew && sess.MessageID != 0 {
		err := h.tg.EditTextWithKeyboard(chatID, sess.MessageID, text, kb)
		if err == nil {
			return nil
		}
		h.logger.Debug("panel edit failed, sending new panel", "err", err)
	}

	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.sessions.Update(chatID, userID, func(s *session.Session) { s.MessageID = msgID })
	return nil
}

func (h *Handler) downloadName() string {
	return fmt.Sprintf("fashion-fit-%d.png", h.now().UnixMilli())
}

func isBusy(err error) bool {
	return errors.Is(err, fitting.ErrAlreadyGenerating)
}

const helpText = "👗 Fashion Fit Studio\n\n" +
	"Send a photo of a garment and get it back worn by a model.\n\n" +
	"Commands:\n" +
	"/fit - open the studio panel\n" +
	"/fit type=male pose=walking bg=urban ar=9:16 - set options directly\n" +
	"/prompt - show the prompt for the current options\n" +
	"/reset - clear the photo, result and options\n" +
	"/help - this message\n\n" +
	"Options: type (male, female, unisex), race, pose, bg (clean, urban, outdoors, active), ar (1:1, 3:4, 4:3, 9:16, 16:9)."

const (
	busyText         = "A generation is in progress. Please wait for it to finish."
	invalidImageText = "Invalid image format. Please upload a valid image file."
)
