package fitting

import "strings"

type NamedOption struct {
	Key         string `json:"id"`
	Name        string `json:"label"`
	Description string `json:"description,omitempty"`
}

var modelTypes = []NamedOption{
	{Key: string(ModelMale), Name: "Male"},
	{Key: string(ModelFemale), Name: "Female"},
	{Key: string(ModelUnisex), Name: "Unisex"},
}

var races = []NamedOption{
	{Key: "any", Name: "Any"},
	{Key: "east-asian", Name: "East Asian"},
	{Key: "south-asian", Name: "South Asian"},
	{Key: "southeast-asian", Name: "Southeast Asian"},
	{Key: "black", Name: "Black"},
	{Key: "white", Name: "White"},
	{Key: "hispanic", Name: "Hispanic"},
	{Key: "middle-eastern", Name: "Middle Eastern"},
}

var poses = []NamedOption{
	{Key: "shop-display", Name: PoseShopDisplay, Description: "Relaxed posture, slight side angle for a natural look"},
	{Key: "walking", Name: "Walking Motion", Description: "Dynamic movement showing fabric drape"},
	{Key: "side-profile", Name: "Side Profile", Description: "Shows silhouette and side seams"},
	{Key: "back-view", Name: "Back View", Description: "Displays rear construction and pockets"},
	{Key: "sitting", Name: "Relaxed Sitting", Description: "Casual lifestyle context"},
	{Key: "crouching", Name: "Urban Crouch", Description: "Modern street-style aesthetic"},
}

var backgrounds = []NamedOption{
	{Key: "clean", Name: BackgroundClean, Description: "Minimalist studio setup with soft shadows"},
	{Key: "urban", Name: BackgroundUrban, Description: "Modern city street, concrete and glass"},
	{Key: "outdoors", Name: BackgroundOutdoors, Description: "Natural daylight in a park or garden"},
	{Key: "active", Name: BackgroundActive, Description: "Dynamic sports court or gym environment"},
}

var aspectRatios = []NamedOption{
	{Key: string(Aspect1x1), Name: "Square (1:1)"},
	{Key: string(Aspect3x4), Name: "Portrait (3:4)"},
	{Key: string(Aspect4x3), Name: "Landscape (4:3)"},
	{Key: string(Aspect9x16), Name: "Story (9:16)"},
	{Key: string(Aspect16x9), Name: "Wide (16:9)"},
}

func ModelTypes() []NamedOption   { return cloneOptions(modelTypes) }
func Races() []NamedOption        { return cloneOptions(races) }
func Poses() []NamedOption        { return cloneOptions(poses) }
func Backgrounds() []NamedOption  { return cloneOptions(backgrounds) }
func AspectRatios() []NamedOption { return cloneOptions(aspectRatios) }

// LookupOption resolves an option by key or by label, case-insensitively.
func LookupOption(options []NamedOption, value string) (NamedOption, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return NamedOption{}, false
	}
	for _, o := range options {
		if strings.EqualFold(o.Key, value) || strings.EqualFold(o.Name, value) {
			return o, true
		}
	}
	return NamedOption{}, false
}

func cloneOptions(in []NamedOption) []NamedOption {
	out := make([]NamedOption, len(in))
	copy(out, in)
	return out
}
