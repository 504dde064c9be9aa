package gemini

import (
	"errors"
	"strings"

	"google.golang.org/genai"
)

type Kind int

const (
	KindTransportOrUnknown Kind = iota
	KindInvalidImageFormat
	KindEmptyResponse
	KindCorruptImageData
	KindSafetyOrContentFeedback
	KindUnrecognizedResponseShape
	KindPermissionDenied
)

func (k Kind) String() string {
	switch k {
	case KindInvalidImageFormat:
		return "invalid_image_format"
	case KindEmptyResponse:
		return "empty_response"
	case KindCorruptImageData:
		return "corrupt_image_data"
	case KindSafetyOrContentFeedback:
		return "content_feedback"
	case KindUnrecognizedResponseShape:
		return "unrecognized_response"
	case KindPermissionDenied:
		return "permission_denied"
	default:
		return "transport_or_unknown"
	}
}

const (
	msgInvalidImageFormat = "Invalid image format. Please upload a valid image file."
	msgNoContent          = "No content returned from AI. The image might have been flagged by safety filters."
	msgCorruptImage       = "Received empty or corrupt image data from AI."
	msgFeedbackPrefix     = "AI returned feedback instead of an image: "
	msgNoImageResult      = "The AI model finished processing but didn't provide an image result."
	msgPermissionDenied   = "Permission denied by the generation service. Check the API key and its access to the image model."
	msgGenerationFailed   = "Model generation failed."
)

// Error is the failure type returned by GenerateModelFit. Feedback holds the
// service's own text for KindSafetyOrContentFeedback.
type Error struct {
	Kind     Kind
	Message  string
	Feedback string
	Err      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidImageFormat        = &Error{Kind: KindInvalidImageFormat, Message: msgInvalidImageFormat}
	ErrEmptyResponse             = &Error{Kind: KindEmptyResponse, Message: msgNoContent}
	ErrCorruptImageData          = &Error{Kind: KindCorruptImageData, Message: msgCorruptImage}
	ErrSafetyOrContentFeedback   = &Error{Kind: KindSafetyOrContentFeedback}
	ErrUnrecognizedResponseShape = &Error{Kind: KindUnrecognizedResponseShape, Message: msgNoImageResult}
	ErrPermissionDenied          = &Error{Kind: KindPermissionDenied, Message: msgPermissionDenied}
	ErrTransportOrUnknown        = &Error{Kind: KindTransportOrUnknown}
)

// KindOf reports the Kind of err; errors that did not come from this package
// are KindTransportOrUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransportOrUnknown
}

// permissionMarkers are matched against free-text error messages because the
// service does not always return a structured code for credential problems.
var permissionMarkers = []string{
	"Requested entity was not found",
	"API_KEY_INVALID",
	"403",
}

// translateError is the only place that turns raw failures into the
// permission kind. Already classified errors keep their kind unless their
// message carries a permission marker.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if isPermissionError(err) {
		return &Error{Kind: KindPermissionDenied, Message: msgPermissionDenied}
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = msgGenerationFailed
	}
	return &Error{Kind: KindTransportOrUnknown, Message: msg, Err: err}
}

func isPermissionError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 403 {
		return true
	}

	var classified *Error
	if errors.As(err, &classified) && classified.Kind == KindPermissionDenied {
		return true
	}

	msg := err.Error()
	for _, marker := range permissionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
