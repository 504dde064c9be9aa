package fitting

import (
	"errors"
	"fmt"
	"strings"
)

type ModelType string

const (
	ModelMale   ModelType = "male"
	ModelFemale ModelType = "female"
	ModelUnisex ModelType = "unisex"
)

type AspectRatio string

const (
	Aspect1x1  AspectRatio = "1:1"
	Aspect3x4  AspectRatio = "3:4"
	Aspect4x3  AspectRatio = "4:3"
	Aspect9x16 AspectRatio = "9:16"
	Aspect16x9 AspectRatio = "16:9"
)

const (
	PoseShopDisplay = "Shop Display"

	BackgroundClean    = "Clean"
	BackgroundUrban    = "Urban"
	BackgroundOutdoors = "Outdoors"
	BackgroundActive   = "Active"

	RaceAny = "Any"
)

var (
	ErrUnknownModelType   = errors.New("unknown model type")
	ErrUnknownAspectRatio = errors.New("unknown aspect ratio")
)

// StylingConfig is copied into every generation request; callers must not
// share a pointer to it across requests.
type StylingConfig struct {
	ModelType   ModelType   `json:"modelType"`
	ModelRace   string      `json:"modelRace"`
	Pose        string      `json:"pose"`
	Background  string      `json:"background"`
	AspectRatio AspectRatio `json:"aspectRatio"`
}

func DefaultStyling() StylingConfig {
	return StylingConfig{
		ModelType:   ModelFemale,
		ModelRace:   RaceAny,
		Pose:        PoseShopDisplay,
		Background:  BackgroundClean,
		AspectRatio: Aspect3x4,
	}
}

// WithDefaults fills empty fields from DefaultStyling. Non-empty values are
// kept as given, including labels outside the catalog.
func (c StylingConfig) WithDefaults() StylingConfig {
	d := DefaultStyling()
	if strings.TrimSpace(string(c.ModelType)) == "" {
		c.ModelType = d.ModelType
	}
	if strings.TrimSpace(c.ModelRace) == "" {
		c.ModelRace = d.ModelRace
	}
	if strings.TrimSpace(c.Pose) == "" {
		c.Pose = d.Pose
	}
	if strings.TrimSpace(c.Background) == "" {
		c.Background = d.Background
	}
	if strings.TrimSpace(string(c.AspectRatio)) == "" {
		c.AspectRatio = d.AspectRatio
	}
	return c
}

func (c StylingConfig) Validate() error {
	if _, ok := ParseModelType(string(c.ModelType)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModelType, c.ModelType)
	}
	if _, ok := ParseAspectRatio(string(c.AspectRatio)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAspectRatio, c.AspectRatio)
	}
	return nil
}

func ParseModelType(value string) (ModelType, bool) {
	switch ModelType(strings.ToLower(strings.TrimSpace(value))) {
	case ModelMale:
		return ModelMale, true
	case ModelFemale:
		return ModelFemale, true
	case ModelUnisex:
		return ModelUnisex, true
	}
	return "", false
}

func ParseAspectRatio(value string) (AspectRatio, bool) {
	value = strings.ReplaceAll(strings.TrimSpace(value), "x", ":")
	for _, o := range aspectRatios {
		if o.Key == value {
			return AspectRatio(o.Key), true
		}
	}
	return "", false
}

// ParseArgs applies "key=value" tokens on top of base. Values may be catalog
// keys or labels; multi-word labels can be double-quoted. Unknown tokens are
// returned so callers can report them.
func ParseArgs(raw string, base StylingConfig) (StylingConfig, []string) {
	cfg := base
	var unknown []string

	for _, tok := range splitArgs(raw) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			if mt, ok := ParseModelType(tok); ok {
				cfg.ModelType = mt
				continue
			}
			if ar, ok := ParseAspectRatio(tok); ok {
				cfg.AspectRatio = ar
				continue
			}
			unknown = append(unknown, tok)
			continue
		}

		applied := false
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "type", "model":
			if mt, ok := ParseModelType(value); ok {
				cfg.ModelType = mt
				applied = true
			}
		case "race", "ethnicity":
			if o, ok := LookupOption(races, value); ok {
				cfg.ModelRace = o.Name
				applied = true
			}
		case "pose":
			if o, ok := LookupOption(poses, value); ok {
				cfg.Pose = o.Name
				applied = true
			} else if v := strings.TrimSpace(value); v != "" {
				cfg.Pose = v
				applied = true
			}
		case "bg", "background":
			if o, ok := LookupOption(backgrounds, value); ok {
				cfg.Background = o.Name
				applied = true
			}
		case "ar", "aspect":
			if ar, ok := ParseAspectRatio(value); ok {
				cfg.AspectRatio = ar
				applied = true
			}
		}
		if !applied {
			unknown = append(unknown, tok)
		}
	}

	return cfg, unknown
}

func splitArgs(raw string) []string {
	var (
		out     []string
		buf     strings.Builder
		inQuote bool
	)
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			out = append(out, s)
		}
		buf.Reset()
	}

	for _, r := range raw {
		switch {
		case r == '"':
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		default:
			buf.WriteRune(r)
		}
	}
	flush()
	return out
}
