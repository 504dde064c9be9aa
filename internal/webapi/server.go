package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"fashion-fit-bot/internal/fitting"
	"fashion-fit-bot/internal/gemini"
	"fashion-fit-bot/internal/imagedata"
)

// Generator produces a model shot from a garment data URL.
type Generator interface {
	GenerateModelFit(ctx context.Context, imageDataURL string, cfg fitting.StylingConfig) (string, error)
}

type Options struct {
	Generator      Generator
	Logger         *slog.Logger
	MaxUploadBytes int64
	RequestTimeout time.Duration
	AllowedOrigin  string
}

type Server struct {
	gen            Generator
	logger         *slog.Logger
	maxUploadBytes int64
	requestTimeout time.Duration
	allowedOrigin  string
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	origin := strings.TrimSpace(opts.AllowedOrigin)
	if origin == "" {
		origin = "*"
	}

	return &Server{
		gen:            opts.Generator,
		logger:         logger,
		maxUploadBytes: maxUpload,
		requestTimeout: timeout,
		allowedOrigin:  origin,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(withRequestID, s.withLogging, s.withCORS)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/fit", s.handleFit).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/prompt", s.handlePrompt).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/options", s.handleOptions).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	return r
}

type fitRequest struct {
	Image  string                `json:"image"`
	Config fitting.StylingConfig `json:"config"`
}

type fitResponse struct {
	Image string `json:"image"`
}

type promptResponse struct {
	Prompt string                `json:"prompt"`
	Config fitting.StylingConfig `json:"config"`
}

type optionsResponse struct {
	ModelTypes   []fitting.NamedOption `json:"modelTypes"`
	Races        []fitting.NamedOption `json:"races"`
	Poses        []fitting.NamedOption `json:"poses"`
	Backgrounds  []fitting.NamedOption `json:"backgrounds"`
	AspectRatios []fitting.NamedOption `json:"aspectRatios"`
	Defaults     fitting.StylingConfig `json:"defaults"`
}

type apiError struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Feedback  string `json:"feedback,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

const kindInvalidOptions = "invalid_options"

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	req, err := s.decodeFitRequest(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, apiError{Error: "upload too large", Kind: gemini.KindInvalidImageFormat.String()})
			return
		}
		if errors.Is(err, imagedata.ErrNotAnImage) || errors.Is(err, errMissingImage) {
			s.writeError(w, r, http.StatusBadRequest, apiError{Error: gemini.ErrInvalidImageFormat.Error(), Kind: gemini.KindInvalidImageFormat.String()})
			return
		}
		s.writeError(w, r, http.StatusBadRequest, apiError{Error: "invalid request body", Kind: kindInvalidOptions})
		return
	}

	cfg := req.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, apiError{Error: err.Error(), Kind: kindInvalidOptions})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	image, err := s.gen.GenerateModelFit(ctx, req.Image, cfg)
	if err != nil {
		body := apiError{Error: err.Error(), Kind: gemini.KindOf(err).String()}
		var gerr *gemini.Error
		if errors.As(err, &gerr) {
			body.Feedback = gerr.Feedback
		}
		s.writeError(w, r, statusForKind(gemini.KindOf(err)), body)
		return
	}

	writeJSON(w, http.StatusOK, fitResponse{Image: image})
}

var errMissingImage = errors.New("missing image")

// decodeFitRequest accepts a JSON body with a data URL, or a multipart form
// with an "image" file and one field per styling option.
func (s *Server) decodeFitRequest(r *http.Request) (fitRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req fitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return fitRequest{}, err
		}
		if strings.TrimSpace(req.Image) == "" {
			return fitRequest{}, errMissingImage
		}
		return req, nil
	}

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		return fitRequest{}, err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return fitRequest{}, errMissingImage
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fitRequest{}, err
	}

	upload, err := imagedata.FromBytes(data, header.Header.Get("Content-Type"))
	if err != nil {
		return fitRequest{}, err
	}

	return fitRequest{
		Image: upload.DataURL(),
		Config: fitting.StylingConfig{
			ModelType:   fitting.ModelType(strings.TrimSpace(r.FormValue("modelType"))),
			ModelRace:   strings.TrimSpace(r.FormValue("modelRace")),
			Pose:        strings.TrimSpace(r.FormValue("pose")),
			Background:  strings.TrimSpace(r.FormValue("background")),
			AspectRatio: fitting.AspectRatio(strings.TrimSpace(r.FormValue("aspectRatio"))),
		},
	}, nil
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		return
	}

	var cfg fitting.StylingConfig
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, http.StatusBadRequest, apiError{Error: "invalid request body", Kind: kindInvalidOptions})
		return
	}
	cfg = cfg.WithDefaults()

	writeJSON(w, http.StatusOK, promptResponse{Prompt: fitting.BuildPrompt(cfg), Config: cfg})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, optionsResponse{
		ModelTypes:   fitting.ModelTypes(),
		Races:        fitting.Races(),
		Poses:        fitting.Poses(),
		Backgrounds:  fitting.Backgrounds(),
		AspectRatios: fitting.AspectRatios(),
		Defaults:     fitting.DefaultStyling(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForKind maps client-side problems to 4xx and service-side ones to 5xx.
func statusForKind(kind gemini.Kind) int {
	switch kind {
	case gemini.KindInvalidImageFormat:
		return http.StatusBadRequest
	case gemini.KindEmptyResponse,
		gemini.KindCorruptImageData,
		gemini.KindSafetyOrContentFeedback,
		gemini.KindUnrecognizedResponseShape:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, body apiError) {
	body.RequestID = RequestIDFrom(r.Context())
	s.logger.Warn("api error",
		"request_id", body.RequestID,
		"path", r.URL.Path,
		"status", status,
		"kind", body.Kind,
	)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
