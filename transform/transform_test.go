package transform

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanodrive/common"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeFull, false},
		{"full", ModeFull, false},
		{"TEST", ModeTest, false},
		{" test ", ModeTest, false},
		{"draft", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.True(t, common.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelector(t *testing.T) {
	placeholder := NewPlaceholder()
	s := NewSelector().Register(ModeTest, placeholder).Register(ModeFull, nil)

	got, err := s.For(ModeTest)
	require.NoError(t, err)
	assert.Same(t, placeholder, got)

	_, err = s.For(ModeFull)
	assert.True(t, common.IsValidation(err))
}

func TestPlaceholderIsDeterministic(t *testing.T) {
	p := NewPlaceholder()
	ctx := context.Background()

	a, err := p.Transform(ctx, Request{Prompt: "cartoon style"})
	require.NoError(t, err)
	b, err := p.Transform(ctx, Request{Prompt: "cartoon style"})
	require.NoError(t, err)

	assert.Equal(t, "image/png", a.MimeType)
	assert.Equal(t, a.Data, b.Data)

	img, err := png.Decode(bytes.NewReader(a.Data))
	require.NoError(t, err)
	assert.Equal(t, 512, img.Bounds().Dx())
	r, g, bl, _ := img.At(10, 10).RGBA()
	assert.Equal(t, []uint32{173, 216, 230}, []uint32{r >> 8, g >> 8, bl >> 8})
}

// pngText returns the text chunks of a PNG keyed by chunk type.
func pngText(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	for rest := data[8:]; len(rest) >= 12; {
		n := binary.BigEndian.Uint32(rest[:4])
		kind := string(rest[4:8])
		if kind == "tEXt" || kind == "iTXt" {
			out[kind] = rest[8 : 8+n]
		}
		rest = rest[12+n:]
	}
	return out
}

func TestPlaceholderRecordsPrompt(t *testing.T) {
	p := NewPlaceholder()
	ctx := context.Background()

	plain, err := p.Transform(ctx, Request{Prompt: "cartoon style"})
	require.NoError(t, err)
	assert.Equal(t, []byte("Description\x00cartoon style"), pngText(t, plain.Data)["tEXt"])

	wide, err := p.Transform(ctx, Request{Prompt: "水彩画"})
	require.NoError(t, err)
	assert.Equal(t, []byte("Description\x00\x00\x00\x00\x00水彩画"), pngText(t, wide.Data)["iTXt"])

	bare, err := p.Transform(ctx, Request{})
	require.NoError(t, err)
	assert.Empty(t, pngText(t, bare.Data))

	other, err := p.Transform(ctx, Request{Prompt: "pencil sketch"})
	require.NoError(t, err)
	assert.NotEqual(t, plain.Data, other.Data)

	for _, data := range [][]byte{plain.Data, wide.Data, other.Data} {
		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 512, img.Bounds().Dx())
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	src := Image{Data: []byte("\x89PNG\r\n\x1a\n0000"), MimeType: "image/png"}
	uri := EncodeDataURI(src)
	assert.Contains(t, uri, "data:image/png;base64,")

	got, err := DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, src, got)

	_, err = DecodeDataURI("https://example.com/a.png")
	assert.Error(t, err)
	_, err = DecodeDataURI("data:image/png,plain")
	assert.Error(t, err)
}

func TestDecodeDataURISniffsMissingMime(t *testing.T) {
	pngData, err := NewPlaceholder().Transform(context.Background(), Request{})
	require.NoError(t, err)
	got, err := DecodeDataURI(EncodeDataURI(Image{Data: pngData.Data}))
	require.NoError(t, err)
	assert.Equal(t, "image/png", got.MimeType)
}

func TestHTTPTransformer(t *testing.T) {
	var gotReq generateRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(generateResponse{Image: EncodeDataURI(Image{Data: []byte("out"), MimeType: "image/jpeg"})})
	}))
	defer srv.Close()

	tr := NewHTTPTransformer(HTTPConfig{Endpoint: srv.URL, APIKey: "secret"})
	out, err := tr.Transform(context.Background(), Request{
		Source: Image{Data: []byte("in"), MimeType: "image/png"},
		Prompt: "gothic style",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("out"), out.Data)
	assert.Equal(t, "image/jpeg", out.MimeType)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Contains(t, gotReq.Instruction, `"gothic style"`)
	assert.Equal(t, "data:image/png;base64,aW4=", gotReq.Image)
}

func TestHTTPTransformerEmptyMediaFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"image":""}`))
	}))
	defer srv.Close()

	_, err := NewHTTPTransformer(HTTPConfig{Endpoint: srv.URL}).Transform(context.Background(), Request{Prompt: "p"})
	assert.True(t, common.IsTransform(err))
}

func TestHTTPTransformerBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"prompt rejected"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPTransformer(HTTPConfig{Endpoint: srv.URL}).Transform(context.Background(), Request{Prompt: "p"})
	require.True(t, common.IsTransform(err))
	assert.Contains(t, err.Error(), "prompt rejected")
}

func TestStylesIsACopy(t *testing.T) {
	s := Styles()
	require.Len(t, s, 8)
	assert.Contains(t, s, DefaultStyle)
	s[0] = "changed"
	assert.Equal(t, "gothic style", Styles()[0])
}
