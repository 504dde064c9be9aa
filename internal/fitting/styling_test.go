package fitting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStyling(t *testing.T) {
	d := DefaultStyling()
	require.NoError(t, d.Validate())
	assert.Equal(t, ModelFemale, d.ModelType)
	assert.Equal(t, PoseShopDisplay, d.Pose)
	assert.Equal(t, BackgroundClean, d.Background)
	assert.Equal(t, Aspect3x4, d.AspectRatio)
}

func TestStylingConfig_WithDefaults(t *testing.T) {
	got := StylingConfig{Pose: "Custom lean", AspectRatio: Aspect16x9}.WithDefaults()

	assert.Equal(t, ModelFemale, got.ModelType)
	assert.Equal(t, RaceAny, got.ModelRace)
	assert.Equal(t, "Custom lean", got.Pose)
	assert.Equal(t, BackgroundClean, got.Background)
	assert.Equal(t, Aspect16x9, got.AspectRatio)
}

func TestStylingConfig_Validate(t *testing.T) {
	cfg := DefaultStyling()
	cfg.ModelType = "robot"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownModelType)

	cfg = DefaultStyling()
	cfg.AspectRatio = "2:3"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownAspectRatio)

	cfg = DefaultStyling()
	cfg.Background = "Moon"
	cfg.Pose = "Floating"
	assert.NoError(t, cfg.Validate(), "free-form pose and background labels are allowed")
}

func TestParseAspectRatio(t *testing.T) {
	for in, want := range map[string]AspectRatio{
		"1:1":   Aspect1x1,
		" 3:4 ": Aspect3x4,
		"16x9":  Aspect16x9,
		"9:16":  Aspect9x16,
		"4:3":   Aspect4x3,
	} {
		got, ok := ParseAspectRatio(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseAspectRatio("5:4")
	assert.False(t, ok)
}

func TestParseArgs(t *testing.T) {
	got, unknown := ParseArgs(`type=male race=east-asian pose="Walking Motion" bg=urban ar=9:16 sparkle`, DefaultStyling())

	assert.Equal(t, StylingConfig{
		ModelType:   ModelMale,
		ModelRace:   "East Asian",
		Pose:        "Walking Motion",
		Background:  BackgroundUrban,
		AspectRatio: Aspect9x16,
	}, got)
	assert.Equal(t, []string{"sparkle"}, unknown)
}

func TestParseArgs_BareTokensAndFallbacks(t *testing.T) {
	base := DefaultStyling()

	got, unknown := ParseArgs("unisex 16:9 pose=back-view bg=moon", base)

	assert.Equal(t, ModelUnisex, got.ModelType)
	assert.Equal(t, Aspect16x9, got.AspectRatio)
	assert.Equal(t, "Back View", got.Pose)
	assert.Equal(t, BackgroundClean, got.Background, "unknown background keeps base value")
	assert.Equal(t, []string{"bg=moon"}, unknown)
}

func TestParseArgs_Empty(t *testing.T) {
	got, unknown := ParseArgs("   ", DefaultStyling())
	assert.Equal(t, DefaultStyling(), got)
	assert.Empty(t, unknown)
}

func TestLookupOption(t *testing.T) {
	o, ok := LookupOption(Poses(), "shop-display")
	require.True(t, ok)
	assert.Equal(t, PoseShopDisplay, o.Name)

	o, ok = LookupOption(Backgrounds(), "outdoors")
	require.True(t, ok)
	assert.Equal(t, BackgroundOutdoors, o.Name)

	_, ok = LookupOption(Backgrounds(), "")
	assert.False(t, ok)
}

func TestCatalogIsCopied(t *testing.T) {
	p := Poses()
	p[0].Name = "mutated"
	assert.Equal(t, PoseShopDisplay, Poses()[0].Name)
}
