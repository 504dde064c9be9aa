package gemini

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"fashion-fit-bot/internal/fitting"
	"fashion-fit-bot/internal/imagedata"
)

const DefaultModel = "gemini-2.5-flash-image"

// Options is the full service configuration; nothing else is read from the
// environment by this package.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// contentGenerator is satisfied by (*genai.Client).Models.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	models contentGenerator
	model  string
	logger *slog.Logger
}

// New builds a client for the Gemini API backend. An empty APIKey is not an
// error here: every generation then fails with KindPermissionDenied.
func New(ctx context.Context, opts Options) (*Client, error) {
	c := newClient(nil, opts)

	if strings.TrimSpace(opts.APIKey) == "" {
		c.logger.Warn("gemini api key is not configured; generations will be rejected")
		return c, nil
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimSpace(opts.BaseURL),
			APIVersion: strings.TrimSpace(opts.APIVersion),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.models = gc.Models
	return c, nil
}

func newClient(models contentGenerator, opts Options) *Client {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		models: models,
		model:  model,
		logger: logger,
	}
}

func (c *Client) Model() string {
	return c.model
}

// GenerateModelFit sends the garment image and the styling prompt in one
// request and returns the generated image as a PNG data URL. Failures are
// *Error values; see Kind for the taxonomy.
func (c *Client) GenerateModelFit(ctx context.Context, imageDataURL string, cfg fitting.StylingConfig) (string, error) {
	url, err := c.generate(ctx, imageDataURL, cfg)
	if err != nil {
		translated := translateError(err)
		c.logger.Error("model fit generation failed",
			"kind", KindOf(translated).String(),
			"err", err,
		)
		return "", translated
	}
	return url, nil
}

func (c *Client) generate(ctx context.Context, imageDataURL string, cfg fitting.StylingConfig) (string, error) {
	enc, err := imagedata.ParseDataURL(imageDataURL)
	if err != nil {
		return "", &Error{Kind: KindInvalidImageFormat, Message: msgInvalidImageFormat, Err: err}
	}
	imageBytes, err := enc.Bytes()
	if err != nil {
		return "", &Error{Kind: KindInvalidImageFormat, Message: msgInvalidImageFormat, Err: err}
	}

	prompt := fitting.BuildPrompt(cfg)

	if c.models == nil {
		return "", &Error{Kind: KindPermissionDenied, Message: msgPermissionDenied}
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(imageBytes, enc.MIMEType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	c.logger.Info("model fit request",
		"model", c.model,
		"mime", enc.MIMEType,
		"image_bytes", len(imageBytes),
		"aspect_ratio", string(cfg.AspectRatio),
		"pose", cfg.Pose,
		"background", cfg.Background,
	)

	resp, err := c.models.GenerateContent(ctx, c.model, contents, requestConfig(cfg.AspectRatio))
	if err != nil {
		return "", err
	}

	return classifyResponse(resp)
}

func requestConfig(aspectRatio fitting.AspectRatio) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}
	if aspectRatio != "" {
		cfg.ImageConfig = &genai.ImageConfig{AspectRatio: string(aspectRatio)}
	}
	return cfg
}
