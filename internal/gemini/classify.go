package gemini

import (
	"encoding/base64"
	"strings"

	"google.golang.org/genai"
)

// Shorter base64 payloads are treated as truncated output.
const minImagePayloadLen = 100

type partKind int

const (
	partOther partKind = iota
	partImage
	partText
)

type responsePart struct {
	kind  partKind
	image []byte
	text  string
}

func toResponseParts(parts []*genai.Part) []responsePart {
	out := make([]responsePart, 0, len(parts))
	for _, p := range parts {
		switch {
		case p == nil:
			continue
		case p.InlineData != nil:
			out = append(out, responsePart{kind: partImage, image: p.InlineData.Data})
		case p.Text != "" && !p.Thought:
			out = append(out, responsePart{kind: partText, text: p.Text})
		default:
			out = append(out, responsePart{kind: partOther})
		}
	}
	return out
}

func firstOfKind(parts []responsePart, kind partKind) (responsePart, bool) {
	for _, p := range parts {
		if p.kind == kind {
			return p, true
		}
	}
	return responsePart{}, false
}

// classifyResponse looks only at the first candidate: an image part wins over
// a text part, which wins over anything else.
func classifyResponse(resp *genai.GenerateContentResponse) (string, error) {
	var raw []*genai.Part
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0] != nil && resp.Candidates[0].Content != nil {
		raw = resp.Candidates[0].Content.Parts
	}
	if len(raw) == 0 {
		msg := fallbackText(resp)
		if msg == "" {
			msg = msgNoContent
		}
		return "", &Error{Kind: KindEmptyResponse, Message: msg}
	}

	parts := toResponseParts(raw)

	if img, ok := firstOfKind(parts, partImage); ok {
		payload := base64.StdEncoding.EncodeToString(img.image)
		if len(payload) < minImagePayloadLen {
			return "", &Error{Kind: KindCorruptImageData, Message: msgCorruptImage}
		}
		return "data:image/png;base64," + payload, nil
	}

	if txt, ok := firstOfKind(parts, partText); ok {
		return "", &Error{
			Kind:     KindSafetyOrContentFeedback,
			Message:  msgFeedbackPrefix + txt.text,
			Feedback: txt.text,
		}
	}

	return "", &Error{Kind: KindUnrecognizedResponseShape, Message: msgNoImageResult}
}

// fallbackText is the service's explanation for an empty response, if any.
func fallbackText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	if fb := resp.PromptFeedback; fb != nil {
		if msg := strings.TrimSpace(fb.BlockReasonMessage); msg != "" {
			return msg
		}
		if reason := string(fb.BlockReason); reason != "" && reason != "BLOCKED_REASON_UNSPECIFIED" {
			return "Request blocked by the generation service: " + reason
		}
	}
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		if msg := strings.TrimSpace(cand.FinishMessage); msg != "" {
			return msg
		}
	}
	return ""
}
