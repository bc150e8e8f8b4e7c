package transform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"nanodrive/common"
)

const roomInstruction = `Assuming the image is of a room in a domestic house, decorate and furnish this room in a style specified by the following prompt: "%s"`

type HTTPConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	RPS      float64 // 0 = unlimited
}

type generateRequest struct {
	Image       string   `json:"image"`
	Instruction string   `json:"instruction"`
	Modalities  []string `json:"modalities"`
}

type generateResponse struct {
	Image string `json:"image"`
	Error string `json:"error,omitempty"`
}

// HTTPTransformer posts the source image as a data URI to a generative image
// endpoint and decodes the data URI it answers with.
type HTTPTransformer struct {
	client   *resty.Client
	limiter  *rate.Limiter
	endpoint string
}

func NewHTTPTransformer(cfg HTTPConfig) *HTTPTransformer {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	// 5xx and connection errors are retried by the transport; resty only shapes requests.
	client := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(timeout).
		SetHeader("User-Agent", "nanodrive/1.0")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(1, int(cfg.RPS)))
	}

	return &HTTPTransformer{client: client, limiter: limiter, endpoint: cfg.Endpoint}
}

func (t *HTTPTransformer) Transform(ctx context.Context, req Request) (Image, error) {
	const op = "generate image"

	if err := t.limiter.Wait(ctx); err != nil {
		return Image{}, common.Transform(op, t.endpoint, fmt.Errorf("rate limit error: %w", err))
	}

	var out generateResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(generateRequest{
			Image:       EncodeDataURI(req.Source),
			Instruction: fmt.Sprintf(roomInstruction, req.Prompt),
			Modalities:  []string{"TEXT", "IMAGE"},
		}).
		SetResult(&out).
		SetError(&out).
		Post(t.endpoint)
	if err != nil {
		return Image{}, common.Transform(op, t.endpoint, err)
	}
	if resp.StatusCode() != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = resp.Status()
		}
		return Image{}, common.Transform(op, t.endpoint, fmt.Errorf("backend returned %d: %s", resp.StatusCode(), msg))
	}
	if out.Image == "" {
		return Image{}, common.Transform(op, t.endpoint, errors.New("image generation failed: no media returned"))
	}

	img, err := DecodeDataURI(out.Image)
	if err != nil {
		return Image{}, common.Transform(op, t.endpoint, err)
	}
	if len(img.Data) == 0 {
		return Image{}, common.Transform(op, t.endpoint, errors.New("image generation failed: empty media"))
	}
	return img, nil
}
