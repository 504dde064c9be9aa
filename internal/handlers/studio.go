package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fashion-fit-bot/internal/fitting"
	"fashion-fit-bot/internal/gemini"
	"fashion-fit-bot/internal/session"
)

const callbackPrefix = "ff"

var errNoPhoto = errors.New("no garment photo selected")

const permissionGuidance = "Permission denied. Please ensure your environment has a valid API key with access to the Gemini 2.5 Flash Image model."

type callback struct {
	owner  int64
	action string
	arg    string
}

// parseCallback splits "ff:<owner>:<action>[:<arg>]". The argument may
// itself contain colons, as aspect ratios do.
func parseCallback(data string) (callback, bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 4)
	if len(parts) < 3 || parts[0] != callbackPrefix {
		return callback{}, false
	}
	owner, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return callback{}, false
	}
	act := callback{owner: owner, action: parts[2]}
	if len(parts) == 4 {
		act.arg = parts[3]
	}
	return act, true
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.Message.Chat == nil || q.From == nil {
		return nil
	}
	act, ok := parseCallback(q.Data)
	if !ok {
		return nil
	}
	if act.owner != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This panel belongs to someone else.", true)
		return nil
	}

	chatID := q.Message.Chat.ID
	h.sessions.Update(chatID, act.owner, func(s *session.Session) { s.MessageID = q.Message.MessageID })

	switch act.action {
	case "generate":
		_ = h.tg.AnswerCallback(q.ID, "Generating…", false)
		return h.generate(ctx, chatID, act.owner, false)
	case "retry":
		_ = h.tg.AnswerCallback(q.ID, "Retrying…", false)
		return h.generate(ctx, chatID, act.owner, true)
	case "download":
		return h.download(chatID, act.owner, q.ID)
	case "prompt":
		_ = h.tg.AnswerCallback(q.ID, "Sending prompt…", false)
		sess := h.sessions.Get(chatID, act.owner)
		return h.tg.SendText(chatID, fitting.BuildPrompt(sess.Styling))
	case "reset":
		sess, err := h.sessions.Reset(chatID, act.owner)
		if err != nil {
			_ = h.tg.AnswerCallback(q.ID, busyText, true)
			return nil
		}
		_ = h.tg.AnswerCallback(q.ID, "Studio reset", false)
		return h.renderPanel(chatID, act.owner, sess, false)
	case "close":
		_ = h.tg.AnswerCallback(q.ID, "Closed", false)
		sess := h.sessions.Update(chatID, act.owner, func(s *session.Session) {
			s.Menu = session.MenuMain
			s.AwaitingPhoto = false
		})
		return h.tg.EditTextWithKeyboard(chatID, sess.MessageID, closedPanelText(), emptyKeyboard())
	case "noop":
		_ = h.tg.AnswerCallback(q.ID, "Still working…", false)
		return nil
	}

	sess, err := h.sessions.Transition(chatID, act.owner, func(s *session.Session) error {
		return applyOption(s, act)
	})
	switch {
	case isBusy(err):
		_ = h.tg.AnswerCallback(q.ID, busyText, true)
		return nil
	case err != nil:
		_ = h.tg.AnswerCallback(q.ID, "Unknown option", false)
		return nil
	}

	_ = h.tg.AnswerCallback(q.ID, "", false)
	if act.action == "photo" {
		_ = h.tg.SendText(chatID, "📷 Send the garment photo now.")
	}
	return h.renderPanel(chatID, act.owner, sess, false)
}

// applyOption handles menu navigation and option changes. Options are frozen
// while a generation runs so the result always matches what the panel shows.
func applyOption(s *session.Session, act callback) error {
	if act.action == "menu" {
		s.Menu = session.Menu(act.arg)
		return nil
	}
	if s.Request.InFlight() {
		return fitting.ErrAlreadyGenerating
	}

	switch act.action {
	case "type":
		mt, ok := fitting.ParseModelType(act.arg)
		if !ok {
			return fitting.ErrUnknownModelType
		}
		s.Styling.ModelType = mt
	case "race":
		o, ok := fitting.LookupOption(fitting.Races(), act.arg)
		if !ok {
			return errUnknownOption
		}
		s.Styling.ModelRace = o.Name
	case "pose":
		o, ok := fitting.LookupOption(fitting.Poses(), act.arg)
		if !ok {
			return errUnknownOption
		}
		s.Styling.Pose = o.Name
	case "bg":
		o, ok := fitting.LookupOption(fitting.Backgrounds(), act.arg)
		if !ok {
			return errUnknownOption
		}
		s.Styling.Background = o.Name
	case "ar":
		ar, ok := fitting.ParseAspectRatio(act.arg)
		if !ok {
			return fitting.ErrUnknownAspectRatio
		}
		s.Styling.AspectRatio = ar
	case "photo":
		s.AwaitingPhoto = true
	default:
		return errUnknownOption
	}
	s.Menu = session.MenuMain
	return nil
}

var errUnknownOption = errors.New("unknown option")

// generate drives one request through the state machine: Generating first,
// then exactly one of Succeeded or Failed.
func (h *Handler) generate(ctx context.Context, chatID, userID int64, retry bool) error {
	sess, err := h.sessions.Transition(chatID, userID, func(s *session.Session) error {
		if !s.HasPhoto() {
			return errNoPhoto
		}
		if retry {
			return s.Request.Retry()
		}
		// A new generation from a finished panel starts a fresh request.
		if s.Request.Status == fitting.StatusSucceeded || s.Request.Status == fitting.StatusFailed {
			if err := s.Request.Reset(); err != nil {
				return err
			}
		}
		return s.Request.Submit()
	})
	switch {
	case errors.Is(err, errNoPhoto):
		sess = h.sessions.Update(chatID, userID, func(s *session.Session) { s.AwaitingPhoto = true })
		_ = h.tg.SendText(chatID, "📷 Send a garment photo first.")
		return h.renderPanel(chatID, userID, sess, false)
	case isBusy(err):
		return nil
	case err != nil:
		// Stale button, e.g. Retry on a panel that already succeeded.
		return h.renderPanel(chatID, userID, h.sessions.Get(chatID, userID), false)
	}

	if err := h.renderPanel(chatID, userID, sess, false); err != nil {
		h.logger.Warn("panel render failed", "err", err)
	}
	h.tg.SendTyping(chatID)

	resultURL, genErr := h.runGeneration(ctx, sess)

	final, err := h.sessions.Transition(chatID, userID, func(s *session.Session) error {
		if genErr != nil {
			return s.Request.Fail(failureMessage(genErr))
		}
		return s.Request.Succeed(resultURL)
	})
	if err != nil {
		return err
	}

	if genErr != nil {
		h.logger.Warn("model fit failed",
			"chat_id", chatID,
			"user_id", userID,
			"kind", gemini.KindOf(genErr).String(),
		)
	} else {
		h.logger.Info("model fit ready", "chat_id", chatID, "user_id", userID)
		if err := h.tg.SendPhotoDataURL(chatID, resultURL, resultCaption(final.Styling)); err != nil {
			h.logger.Error("send result failed", "err", err)
		}
	}

	// The result photo pushed the panel up; a fresh one keeps the buttons in view.
	return h.renderPanel(chatID, userID, final, genErr == nil)
}

func (h *Handler) runGeneration(ctx context.Context, sess session.Session) (string, error) {
	upload, err := h.tg.DownloadImage(ctx, sess.PhotoFileID)
	if err != nil {
		h.logger.Error("garment download failed", "err", err)
		return "", gemini.ErrInvalidImageFormat
	}
	return h.gen.GenerateModelFit(ctx, upload.DataURL(), sess.Styling)
}

func (h *Handler) download(chatID, userID int64, callbackID string) error {
	sess := h.sessions.Get(chatID, userID)
	if sess.Request.Status != fitting.StatusSucceeded || sess.Request.ResultURL == "" {
		_ = h.tg.AnswerCallback(callbackID, "Nothing to download yet.", true)
		return nil
	}
	_ = h.tg.AnswerCallback(callbackID, "Sending file…", false)
	return h.tg.SendDocumentDataURL(chatID, sess.Request.ResultURL, h.downloadName(), resultCaption(sess.Styling))
}

func failureMessage(err error) string {
	if gemini.KindOf(err) == gemini.KindPermissionDenied {
		return permissionGuidance
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return "Model generation failed."
}

func resultCaption(cfg fitting.StylingConfig) string {
	return cfg.Background + " Studio Fit"
}
