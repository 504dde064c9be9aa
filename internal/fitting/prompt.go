package fitting

import "strings"

const (
	envUrban    = "A stylish urban city street at golden hour, featuring concrete textures, modern architecture in the background, and natural city lighting."
	envOutdoors = "A serene outdoor setting with natural daylight, soft greenery or a park path in the blurred background, creating a high-end lifestyle look."
	envActive   = "A dynamic sports environment, like a modern basketball court or an upscale gym with professional athletic lighting and clean industrial details."
	envStudio   = "A professional photo studio with a clean white floor and a clean white wall, featuring a subtle horizon line and soft studio lighting."

	shopDisplayPose = "relaxed, natural posture, standing at a slight 3/4 side angle"
)

// EnvironmentDescription maps a background label to its scene text. Labels
// other than Urban, Outdoors and Active get the studio scene.
func EnvironmentDescription(background string) string {
	switch background {
	case BackgroundUrban:
		return envUrban
	case BackgroundOutdoors:
		return envOutdoors
	case BackgroundActive:
		return envActive
	default:
		return envStudio
	}
}

func poseDescription(pose string) string {
	if pose == PoseShopDisplay {
		return shopDisplayPose
	}
	return pose
}

// BuildPrompt renders the model-shot instruction. Only ModelType, Pose and
// Background are read. The Shop Display label never appears literally; it is
// always replaced by its expanded posture.
func BuildPrompt(cfg StylingConfig) string {
	pose := poseDescription(cfg.Pose)

	var b strings.Builder
	b.Grow(1536)

	b.WriteString("High-end professional photography.\n")
	b.WriteString("Subject: A " + string(cfg.ModelType) + " model wearing the exact pants from the uploaded image.\n")
	b.WriteString("Pose: The model is in a " + pose + " position.\n")
	b.WriteString("Environment: " + EnvironmentDescription(cfg.Background) + "\n")

	writeSection(&b, "Environmental Details", []string{
		"Realistic lighting creating soft, high-end shadows on the ground.",
		"Professional depth of field with the model in sharp focus.",
	})
	writeSection(&b, "Aesthetics", []string{
		"Full body or lower body framing including hips, legs, and feet.",
		"Model is wearing generic, high-fashion footwear that perfectly complements the " + cfg.Background + " theme and the pants.",
		"CRITICAL: Perfectly preserve the color, texture, material, pattern, and unique details of the original pants provided in the image.",
		"The fabric should drape, fold, and wrinkle naturally based on the " + pose + " pose and " + cfg.Background + " context.",
		"Ensure a clean interaction between the pants hem and the shoes or ground.",
		"Resolution: Sharp, commercial-grade quality, clean edges, zero artifacts.",
	})

	return strings.TrimSpace(b.String())
}

func writeSection(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString(title + ":\n")
	for _, line := range lines {
		b.WriteString("- " + line + "\n")
	}
}
