package coverart

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"
)

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encoding jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	pngData := makePNG(t, 10, 10)
	format, replay, err := DetectFormat(bytes.NewReader(pngData))
	if err != nil {
		t.Fatalf("DetectFormat: %v", err)
	}
	if format != FormatPNG {
		t.Errorf("format = %s, want png", format)
	}
	// The replay reader must serve the full image including the peeked header.
	if _, _, err := image.Decode(replay); err != nil {
		t.Errorf("decoding replayed image: %v", err)
	}

	jpegData := makeJPEG(t, 10, 10)
	format, _, err = DetectFormat(bytes.NewReader(jpegData))
	if err != nil {
		t.Fatalf("DetectFormat: %v", err)
	}
	if format != FormatJPEG {
		t.Errorf("format = %s, want jpeg", format)
	}

	webpHeader := []byte("RIFF\x00\x00\x00\x00WEBPVP8 ")
	format, _, err = DetectFormat(bytes.NewReader(webpHeader))
	if err != nil {
		t.Fatalf("DetectFormat: %v", err)
	}
	if format != FormatWebP {
		t.Errorf("format = %s, want webp", format)
	}

	if _, _, err := DetectFormat(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestDimensions(t *testing.T) {
	data := makePNG(t, 640, 480)
	w, h, err := Dimensions(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 640 || h != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", w, h)
	}
}

func TestIsLowResolution(t *testing.T) {
	tests := []struct {
		w, h int
		want bool
	}{
		{500, 500, false},
		{1200, 1200, false},
		{499, 500, true},
		{500, 499, true},
		{0, 0, false}, // unknown passes
	}
	for _, tt := range tests {
		if got := IsLowResolution(tt.w, tt.h); got != tt.want {
			t.Errorf("IsLowResolution(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestMIMEType(t *testing.T) {
	if got := MIMEType(FormatJPEG); got != "image/jpeg" {
		t.Errorf("jpeg mime = %s", got)
	}
	if got := MIMEType("bmp"); got != "application/octet-stream" {
		t.Errorf("unknown mime = %s", got)
	}
}

func TestFitDimensions(t *testing.T) {
	tests := []struct {
		name         string
		origW, origH int
		maxW, maxH   int
		wantW, wantH int
	}{
		{"fits already", 800, 600, 1200, 1200, 800, 600},
		{"landscape scaled", 2400, 1200, 1200, 1200, 1200, 600},
		{"portrait scaled", 1200, 2400, 1200, 1200, 600, 1200},
		{"square scaled", 3000, 3000, 1200, 1200, 1200, 1200},
		{"extreme ratio floors at one", 100000, 10, 1200, 1200, 1200, 1}, // rounds to 0 without the floor
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := fitDimensions(tt.origW, tt.origH, tt.maxW, tt.maxH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("fitDimensions = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestPrepareForEmbedPassThrough(t *testing.T) {
	data := makeJPEG(t, 800, 800)
	out, format, err := PrepareForEmbed(data)
	if err != nil {
		t.Fatalf("PrepareForEmbed: %v", err)
	}
	if format != FormatJPEG {
		t.Errorf("format = %s, want jpeg", format)
	}
	if !bytes.Equal(out, data) {
		t.Error("expected embeddable image passed through unchanged")
	}
}

func TestPrepareForEmbedDownscales(t *testing.T) {
	data := makePNG(t, 2400, 1600)
	out, format, err := PrepareForEmbed(data)
	if err != nil {
		t.Fatalf("PrepareForEmbed: %v", err)
	}
	if format != FormatPNG {
		t.Errorf("format = %s, want png", format)
	}
	w, h, err := Dimensions(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 1200 || h != 800 {
		t.Errorf("scaled dimensions = %dx%d, want 1200x800", w, h)
	}
}
