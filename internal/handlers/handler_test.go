package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fashion-fit-bot/internal/fitting"
	"fashion-fit-bot/internal/gemini"
	"fashion-fit-bot/internal/imagedata"
	"fashion-fit-bot/internal/mediagroup"
	"fashion-fit-bot/internal/session"
)

const (
	chatID  int64 = 100
	ownerID int64 = 7
)

type panel struct {
	messageID int
	text      string
	kb        tgbotapi.InlineKeyboardMarkup
}

type sentFile struct {
	dataURL string
	name    string
	caption string
}

type fakeMessenger struct {
	mu sync.Mutex

	texts     []string
	panels    []panel
	edits     []panel
	history   []panel
	answers   []string
	photos    []sentFile
	documents []sentFile

	nextMsgID   int
	downloads   map[string]imagedata.Upload
	downloadErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{nextMsgID: 500, downloads: map[string]imagedata.Upload{}}
}

func (f *fakeMessenger) SendText(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) SendTextWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMsgID++
	p := panel{messageID: f.nextMsgID, text: text, kb: kb}
	f.panels = append(f.panels, p)
	f.history = append(f.history, p)
	return f.nextMsgID, nil
}

func (f *fakeMessenger) EditTextWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := panel{messageID: messageID, text: text, kb: kb}
	f.edits = append(f.edits, p)
	f.history = append(f.history, p)
	return nil
}

func (f *fakeMessenger) AnswerCallback(callbackID, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeMessenger) SendTyping(chatID int64) {}

func (f *fakeMessenger) SendPhotoDataURL(chatID int64, dataURL string, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, sentFile{dataURL: dataURL, caption: caption})
	return nil
}

func (f *fakeMessenger) SendDocumentDataURL(chatID int64, dataURL, fileName, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, sentFile{dataURL: dataURL, name: fileName, caption: caption})
	return nil
}

func (f *fakeMessenger) DownloadImage(ctx context.Context, fileID string) (imagedata.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return imagedata.Upload{}, f.downloadErr
	}
	up, ok := f.downloads[fileID]
	if !ok {
		return imagedata.Upload{}, errors.New("file not found")
	}
	return up, nil
}

// lastPanel is the most recent panel state, sent or edited.
func (f *fakeMessenger) lastPanel() panel {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.history) == 0 {
		return panel{}
	}
	return f.history[len(f.history)-1]
}

type fakeGenerator struct {
	calls   int
	dataURL string
	cfg     fitting.StylingConfig
	result  string
	err     error

	// observe runs during the call, while the request is Generating.
	observe func()
}

func (g *fakeGenerator) GenerateModelFit(ctx context.Context, imageDataURL string, cfg fitting.StylingConfig) (string, error) {
	g.calls++
	g.dataURL = imageDataURL
	g.cfg = cfg
	if g.observe != nil {
		g.observe()
	}
	return g.result, g.err
}

func newTestHandler(t *testing.T) (*Handler, *fakeMessenger, *fakeGenerator, *session.Store) {
	t.Helper()
	tg := newFakeMessenger()
	tg.downloads["garment"] = imagedata.Upload{MIMEType: "image/jpeg", Data: []byte("jpeg-bytes")}
	gen := &fakeGenerator{result: "data:image/png;base64,UkVTVUxU"}
	sessions := session.NewStore(session.Options{})
	h := New(Options{Telegram: tg, Generator: gen, Sessions: sessions})
	h.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return h, tg, gen, sessions
}

func command(text string) tgbotapi.Update {
	name := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: ownerID},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func photo(fileID string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: ownerID},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Photo:     []tgbotapi.PhotoSize{{FileID: fileID + "-small"}, {FileID: fileID}},
	}}
}

func press(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cq",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func buttons(kb tgbotapi.InlineKeyboardMarkup) map[string]string {
	out := map[string]string{}
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData != nil {
				out[b.Text] = *b.CallbackData
			}
		}
	}
	return out
}

func TestHandleUpdate_FitCommandOpensPanel(t *testing.T) {
	h, tg, _, sessions := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, command("/fit type=male bg=urban ar=9x16 sparkle")))

	sess := sessions.Get(chatID, ownerID)
	assert.Equal(t, fitting.ModelMale, sess.Styling.ModelType)
	assert.Equal(t, fitting.BackgroundUrban, sess.Styling.Background)
	assert.Equal(t, fitting.Aspect9x16, sess.Styling.AspectRatio)
	assert.Equal(t, 501, sess.MessageID)

	require.Len(t, tg.panels, 1)
	assert.Contains(t, tg.panels[0].text, "Send a garment photo to begin.")
	assert.Contains(t, tg.texts, "⚠️ Ignored: sparkle")
	assert.Contains(t, buttons(tg.panels[0].kb), "📷 Send photo")
}

func TestHandleUpdate_GenerateSuccess(t *testing.T) {
	h, tg, gen, sessions := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photo("garment")))
	assert.Contains(t, tg.lastPanel().text, "Ready for Fitting")

	gen.observe = func() {
		assert.Equal(t, fitting.StatusGenerating, sessions.Get(chatID, ownerID).Request.Status)
		assert.Contains(t, tg.lastPanel().text, "Simulating Drape...")
	}
	require.NoError(t, h.HandleUpdate(ctx, press(ownerID, "ff:7:generate")))

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "data:image/jpeg;base64,anBlZy1ieXRlcw==", gen.dataURL)
	assert.Equal(t, fitting.DefaultStyling(), gen.cfg)

	sess := sessions.Get(chatID, ownerID)
	assert.Equal(t, fitting.StatusSucceeded, sess.Request.Status)
	assert.Equal(t, gen.result, sess.Request.ResultURL)

	require.Len(t, tg.photos, 1)
	assert.Equal(t, "Clean Studio Fit", tg.photos[0].caption)

	last := tg.lastPanel()
	assert.Contains(t, last.text, "Clean Studio Fit")
	assert.Contains(t, buttons(last.kb), "⬇️ Download")

	require.NoError(t, h.HandleUpdate(ctx, press(ownerID, "ff:7:download")))
	require.Len(t, tg.documents, 1)
	assert.Equal(t, "fashion-fit-1700000000123.png", tg.documents[0].name)
	assert.Equal(t, gen.result, tg.documents[0].dataURL)
}

func TestHandleUpdate_GenerateFailureAndRetry(t *testing.T) {
	h, tg, gen, sessions := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photo("garment")))

	gen.err = &gemini.Error{Kind: gemini.KindSafetyOrContentFeedback, Message: "AI returned feedback instead of an image: no", Feedback: "no"}
	require.NoError(t, h.HandleUpdate(ctx, press(ownerID, "ff:7:generate")))

	sess := sessions.Get(chatID, ownerID)
	assert.Equal(t, fitting.StatusFailed, sess.Request.Status)
	assert.Equal(t, "AI returned feedback instead of an image: no", sess.Request.Message)
	assert.Empty(t, tg.photos)

	last := tg.lastPanel()
	assert.Contains(t, last.text, "Generation Failed")
	assert.Contains(t, buttons(last.kb), "🔁 Retry")

	gen.err = nil
	require.NoError(t, h.HandleUpdate(ctx, press(ownerID, "ff:7:retry")))

	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, fitting.StatusSucceeded, sessions.Get(chatID, ownerID).Request.Status)
}

func TestHandleUpdate_PermissionDeniedShowsGuidance(t *testing.T) {
	h, _, gen, sessions := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photo("garment")))
	gen.err = gemini.ErrPermissionDenied
	require.NoError(t, h.HandleUpdate(ctx, press(ownerID, "ff:7:generate")))

	assert.Equal(t, permissionGuidance, sessions.Get(chatID, ownerID).Request.Message)
}

func TestHandleUpdate_DownloadFailureFailsRequest(t *testing.T) {
	h, tg, gen, sessions := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photo("garment")))
	tg.downloadErr = errors.New("not an image")
	require.NoError(t, h.HandleUpdate(ctx, press(ownerID, "ff:7:generate")))

	assert.Zero(t, gen.calls)
	sess := sessions.Get(chatID, ownerID)
	assert.Equal(t, fitting.StatusFailed, sess.Request.Status)
	assert.Equal(t, invalidImageText, sess.Request.Message)
}

func TestHandleUpdate_GenerateWithoutPhoto(t *testing.T) {
	h, tg, gen, sessions := newTestHandler(t)

	require.NoError(t, h.HandleUpdate(context.Background(), press(ownerID, "ff:7:generate")))

	assert.Zero(t, gen.calls)
	assert.Equal(t, fitting.StatusIdle, sessions.Get(chatID, ownerID).Request.Status)
	assert.Contains(t, tg.texts, "📷 Send a garment photo first.")
}

func TestHandleUpdate_BusySessionRejectsChanges(t *testing.T) {
	h, tg, gen, sessions := newTestHandler(t)
	ctx := context.Background()

	sessions.Update(chatID, ownerID, func(s *session.Session) {
		s.PhotoFileID = "garment"
		require.NoError(t, s.Request.Submit())
	})

	require.NoError(t, h.HandleUpdate(ctx, press(ownerID, "ff:7:generate")))
	require.NoError(t, h.HandleUpdate(ctx, press(ownerID, "ff:7:bg:urban")))
	require.NoError(t, h.HandleUpdate(ctx, photo("other")))
	require.NoError(t, h.HandleUpdate(ctx, press(ownerID, "ff:7:reset")))

	assert.Zero(t, gen.calls)
	sess := sessions.Get(chatID, ownerID)
	assert.Equal(t, fitting.StatusGenerating, sess.Request.Status)
	assert.Equal(t, fitting.BackgroundClean, sess.Styling.Background)
	assert.Equal(t, "garment", sess.PhotoFileID)
	assert.Contains(t, tg.answers, busyText)
	assert.Contains(t, tg.texts, "⏳ "+busyText)
}

func TestHandleUpdate_OptionCallbacks(t *testing.T) {
	h, tg, _, sessions := newTestHandler(t)
	ctx := context.Background()

	for _, data := range []string{
		"ff:7:menu:pose",
		"ff:7:pose:walking",
		"ff:7:race:east-asian",
		"ff:7:type:unisex",
		"ff:7:bg:outdoors",
		"ff:7:ar:16:9",
	} {
		require.NoError(t, h.HandleUpdate(ctx, press(ownerID, data)), data)
	}

	st := sessions.Get(chatID, ownerID).Styling
	assert.Equal(t, "Walking Motion", st.Pose)
	assert.Equal(t, "East Asian", st.ModelRace)
	assert.Equal(t, fitting.ModelUnisex, st.ModelType)
	assert.Equal(t, fitting.BackgroundOutdoors, st.Background)
	assert.Equal(t, fitting.Aspect16x9, st.AspectRatio)
	assert.Equal(t, session.MenuMain, sessions.Get(chatID, ownerID).Menu)

	require.NotEmpty(t, tg.edits)
	assert.Equal(t, 77, tg.edits[0].messageID)
	assert.Contains(t, buttons(tg.edits[0].kb), "✅ Shop Display")
}

func TestHandleUpdate_ForeignCallbackIsRejected(t *testing.T) {
	h, tg, _, sessions := newTestHandler(t)

	require.NoError(t, h.HandleUpdate(context.Background(), press(99, "ff:7:bg:urban")))

	assert.Equal(t, fitting.BackgroundClean, sessions.Get(chatID, ownerID).Styling.Background)
	assert.Equal(t, []string{"This panel belongs to someone else."}, tg.answers)
}

func TestHandleUpdate_NewPhotoClearsResult(t *testing.T) {
	h, _, _, sessions := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photo("garment")))
	require.NoError(t, h.HandleUpdate(ctx, press(ownerID, "ff:7:generate")))
	require.Equal(t, fitting.StatusSucceeded, sessions.Get(chatID, ownerID).Request.Status)

	require.NoError(t, h.HandleUpdate(ctx, photo("second")))

	sess := sessions.Get(chatID, ownerID)
	assert.Equal(t, "second", sess.PhotoFileID)
	assert.Equal(t, fitting.StatusIdle, sess.Request.Status)
	assert.Empty(t, sess.Request.ResultURL)
}

func TestHandleUpdate_PromptAndReset(t *testing.T) {
	h, tg, _, sessions := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, command("/fit bg=active")))
	require.NoError(t, h.HandleUpdate(ctx, command("/prompt")))

	want := fitting.BuildPrompt(sessions.Get(chatID, ownerID).Styling)
	assert.Equal(t, want, tg.texts[len(tg.texts)-1])

	require.NoError(t, h.HandleUpdate(ctx, command("/reset")))
	assert.Equal(t, fitting.DefaultStyling(), sessions.Get(chatID, ownerID).Styling)
}

func TestHandleUpdate_DownloadBeforeResult(t *testing.T) {
	h, tg, _, _ := newTestHandler(t)

	require.NoError(t, h.HandleUpdate(context.Background(), press(ownerID, "ff:7:download")))

	assert.Empty(t, tg.documents)
	assert.Equal(t, []string{"Nothing to download yet."}, tg.answers)
}

func TestHandleUpdate_NonImageDocument(t *testing.T) {
	h, tg, _, sessions := newTestHandler(t)

	update := tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: ownerID},
		Chat:     &tgbotapi.Chat{ID: chatID},
		Document: &tgbotapi.Document{FileID: "doc", MimeType: "application/pdf"},
	}}
	require.NoError(t, h.HandleUpdate(context.Background(), update))

	assert.False(t, sessions.Get(chatID, ownerID).HasPhoto())
	assert.Equal(t, []string{"❌ " + invalidImageText}, tg.texts)
}

func TestHandleAlbum_UsesFirstPhoto(t *testing.T) {
	h, tg, _, sessions := newTestHandler(t)

	h.HandleAlbum(context.Background(), mediagroup.Album{ChatID: chatID, UserID: ownerID, FileIDs: []string{"a", "b"}})

	assert.Equal(t, "a", sessions.Get(chatID, ownerID).PhotoFileID)
	assert.Contains(t, tg.texts, "ℹ️ Only the first photo of an album is used as the garment.")
}

func TestParseCallback(t *testing.T) {
	act, ok := parseCallback("ff:42:ar:9:16")
	require.True(t, ok)
	assert.Equal(t, callback{owner: 42, action: "ar", arg: "9:16"}, act)

	act, ok = parseCallback("ff:42:generate")
	require.True(t, ok)
	assert.Equal(t, callback{owner: 42, action: "generate"}, act)

	for _, bad := range []string{"", "pv:1:menu", "ff:x:menu", "ff:1"} {
		_, ok := parseCallback(bad)
		assert.False(t, ok, bad)
	}
}

func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	sess := session.Session{Styling: fitting.DefaultStyling(), PhotoFileID: "x"}
	for _, menu := range []session.Menu{session.MenuMain, session.MenuModelType, session.MenuRace, session.MenuPose, session.MenuBackground, session.MenuAspect} {
		sess.Menu = menu
		for label, data := range buttons(panelKeyboard(9007199254740991, sess)) {
			assert.LessOrEqual(t, len(data), 64, label)
		}
	}
}
