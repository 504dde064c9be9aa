package handlers

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fashion-fit-bot/internal/fitting"
	"fashion-fit-bot/internal/session"
)

func panelText(sess session.Session) string {
	st := sess.Styling

	var b strings.Builder
	b.WriteString("👗 Fashion Fit Studio\n\n")
	fmt.Fprintf(&b, "Model: %s, %s\n", labelFor(fitting.ModelTypes(), string(st.ModelType)), st.ModelRace)
	fmt.Fprintf(&b, "Pose: %s\n", st.Pose)
	fmt.Fprintf(&b, "Background: %s\n", st.Background)
	fmt.Fprintf(&b, "Aspect ratio: %s\n", st.AspectRatio)
	if sess.HasPhoto() {
		b.WriteString("Garment: saved ✅\n")
	} else {
		b.WriteString("Garment: (none)\n")
	}
	b.WriteString("\n")

	switch sess.Request.Status {
	case fitting.StatusGenerating:
		b.WriteString("⏳ Simulating Drape...\nThe model shot is being generated, please wait.")
	case fitting.StatusSucceeded:
		b.WriteString("✅ " + resultCaption(st) + "\nDownload the file, or change options and generate again.")
	case fitting.StatusFailed:
		b.WriteString("❌ Generation Failed\n" + sess.Request.Message)
	default:
		if !sess.HasPhoto() || sess.AwaitingPhoto {
			b.WriteString("📷 Send a garment photo to begin.")
		} else {
			b.WriteString("🧵 Ready for Fitting\nPress Generate to create the model shot.")
		}
	}

	if desc := menuHint(sess.Menu); desc != "" {
		b.WriteString("\n\n" + desc)
	}

	return strings.TrimSpace(b.String())
}

func closedPanelText() string {
	return "👗 Fashion Fit Studio closed. Use /fit to open it again."
}

func menuHint(menu session.Menu) string {
	var opts []fitting.NamedOption
	switch menu {
	case session.MenuPose:
		opts = fitting.Poses()
	case session.MenuBackground:
		opts = fitting.Backgrounds()
	default:
		return ""
	}

	var b strings.Builder
	for _, o := range opts {
		fmt.Fprintf(&b, "• %s: %s\n", o.Name, o.Description)
	}
	return strings.TrimSpace(b.String())
}

func panelKeyboard(ownerID int64, sess session.Session) tgbotapi.InlineKeyboardMarkup {
	if sess.Request.InFlight() {
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("⏳ Generating…", cb(ownerID, "noop")),
			),
		)
	}

	st := sess.Styling
	switch sess.Menu {
	case session.MenuModelType:
		return optionKeyboard(ownerID, "type", fitting.ModelTypes(), string(st.ModelType), 3)
	case session.MenuRace:
		return optionKeyboard(ownerID, "race", fitting.Races(), st.ModelRace, 2)
	case session.MenuPose:
		return optionKeyboard(ownerID, "pose", fitting.Poses(), st.Pose, 2)
	case session.MenuBackground:
		return optionKeyboard(ownerID, "bg", fitting.Backgrounds(), st.Background, 2)
	case session.MenuAspect:
		return optionKeyboard(ownerID, "ar", fitting.AspectRatios(), string(st.AspectRatio), 2)
	default:
		return mainKeyboard(ownerID, sess)
	}
}

func mainKeyboard(ownerID int64, sess session.Session) tgbotapi.InlineKeyboardMarkup {
	st := sess.Styling
	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("Model: "+labelFor(fitting.ModelTypes(), string(st.ModelType)), cb(ownerID, "menu", string(session.MenuModelType))),
			tgbotapi.NewInlineKeyboardButtonData("Race: "+st.ModelRace, cb(ownerID, "menu", string(session.MenuRace))),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Pose: "+st.Pose, cb(ownerID, "menu", string(session.MenuPose))),
			tgbotapi.NewInlineKeyboardButtonData("Scene: "+st.Background, cb(ownerID, "menu", string(session.MenuBackground))),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("AR: "+string(st.AspectRatio), cb(ownerID, "menu", string(session.MenuAspect))),
			tgbotapi.NewInlineKeyboardButtonData("📄 Prompt", cb(ownerID, "prompt")),
		},
	}

	switch {
	case !sess.HasPhoto():
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📷 Send photo", cb(ownerID, "photo")),
		})
	case sess.Request.Status == fitting.StatusFailed:
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🔁 Retry", cb(ownerID, "retry")),
			tgbotapi.NewInlineKeyboardButtonData("📷 Photo", cb(ownerID, "photo")),
		})
	case sess.Request.Status == fitting.StatusSucceeded:
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬇️ Download", cb(ownerID, "download")),
			tgbotapi.NewInlineKeyboardButtonData("🎨 Generate again", cb(ownerID, "generate")),
		})
	default:
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📷 Photo", cb(ownerID, "photo")),
			tgbotapi.NewInlineKeyboardButtonData("🎨 Generate", cb(ownerID, "generate")),
		})
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("Reset", cb(ownerID, "reset")),
		tgbotapi.NewInlineKeyboardButtonData("Close", cb(ownerID, "close")),
	})

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// optionKeyboard lists one catalog. current may be a key or a label.
func optionKeyboard(ownerID int64, action string, options []fitting.NamedOption, current string, perRow int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for _, opt := range options {
		label := opt.Name
		if strings.EqualFold(opt.Key, current) || strings.EqualFold(opt.Name, current) {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, action, opt.Key)))
		if len(row) == perRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", string(session.MenuMain))),
	})

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func emptyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
}

func labelFor(options []fitting.NamedOption, key string) string {
	if o, ok := fitting.LookupOption(options, key); ok {
		return o.Name
	}
	return key
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", callbackPrefix, ownerID, strings.Join(parts, ":"))
}
