package transform

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"unicode"

	"nanodrive/common"
)

var lightBlue = color.RGBA{R: 173, G: 216, B: 230, A: 255}

// PromptKeyword names the PNG text chunk that carries the request prompt.
const PromptKeyword = "Description"

// Placeholder renders a solid light-blue PNG. The pixels never depend on the
// prompt; the prompt is only recorded in a text chunk after IHDR, so equal
// requests still render byte-identical images.
type Placeholder struct {
	Width  int
	Height int
}

func NewPlaceholder() *Placeholder {
	return &Placeholder{Width: 512, Height: 512}
}

func (p *Placeholder) Transform(ctx context.Context, req Request) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, common.Transform("render placeholder", req.Prompt, err)
	}

	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: lightBlue}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, common.Transform("render placeholder", req.Prompt, err)
	}
	return Image{Data: withPrompt(buf.Bytes(), req.Prompt), MimeType: "image/png"}, nil
}

// ihdrEnd is the offset just past the signature and the fixed-size IHDR chunk.
const ihdrEnd = 8 + 4 + 4 + 13 + 4

// withPrompt inserts a tEXt chunk, or iTXt when the prompt is not Latin-1.
func withPrompt(data []byte, prompt string) []byte {
	if prompt == "" || len(data) < ihdrEnd {
		return data
	}

	chunkType := "tEXt"
	payload := append([]byte(PromptKeyword), 0)
	if latin1, ok := toLatin1(prompt); ok {
		payload = append(payload, latin1...)
	} else {
		chunkType = "iTXt"
		// uncompressed, empty language tag and translated keyword
		payload = append(payload, 0, 0, 0, 0)
		payload = append(payload, prompt...)
	}

	chunk := make([]byte, 0, len(payload)+12)
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(payload)))
	chunk = append(chunk, chunkType...)
	chunk = append(chunk, payload...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk...)
	return append(out, data[ihdrEnd:]...)
}

func toLatin1(s string) ([]byte, bool) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > unicode.MaxLatin1 || r == 0 {
			return nil, false
		}
		out = append(out, byte(r))
	}
	return out, true
}
