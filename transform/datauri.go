package transform

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// EncodeDataURI renders img as "data:<mime>;base64,<payload>".
func EncodeDataURI(img Image) string {
	mime := img.MimeType
	if mime == "" {
		mime = mimetype.Detect(img.Data).String()
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// DecodeDataURI parses a base64 data URI. A missing media type is sniffed
// from the payload.
func DecodeDataURI(uri string) (Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return Image{}, errors.New("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, errors.New("data URI has no payload")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return Image{}, errors.New("data URI is not base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode data URI: %w", err)
	}
	if mime == "" {
		mime = mimetype.Detect(data).String()
	}
	return Image{Data: data, MimeType: mime}, nil
}
