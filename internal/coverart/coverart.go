// Package coverart fetches, validates and embeds front cover images for
// audio files.
package coverart

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Supported image format names.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// maxEmbedDimension bounds the long edge of embedded covers; anything
// larger is scaled down before embedding to keep file sizes sane.
const maxEmbedDimension = 1200

// RemoteInfo holds dimension and size metadata for a remote cover URL.
type RemoteInfo struct {
	Width    int
	Height   int
	FileSize int64
}

// ProbeRemote fetches a remote image URL and decodes its dimensions.
func ProbeRemote(ctx context.Context, rawURL string) (*RemoteInfo, error) {
	data, err := FetchRemote(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	w, h, err := Dimensions(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding dimensions: %w", err)
	}
	return &RemoteInfo{Width: w, Height: h, FileSize: int64(len(data))}, nil
}

// FetchRemote downloads a cover image, capped at 10MB.
func FetchRemote(ctx context.Context, rawURL string) ([]byte, error) {
	client := &http.Client{Timeout: 15 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req) //nolint:gosec // URL comes from trusted source API
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if size, err := strconv.ParseInt(cl, 10, 64); err == nil && size > 10<<20 {
			return nil, fmt.Errorf("image too large: %d bytes", size)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return data, nil
}

// DetectFormat reads the first bytes from r to identify the image format.
// Returns "jpeg", "png", or "webp". The returned reader replays the consumed bytes.
func DetectFormat(r io.Reader) (format string, replay io.Reader, err error) {
	buf := make([]byte, 12)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("reading header: %w", err)
	}
	buf = buf[:n]

	replay = io.MultiReader(bytes.NewReader(buf), r)

	if n >= 3 && buf[0] == 0xFF && buf[1] == 0xD8 && buf[2] == 0xFF {
		return FormatJPEG, replay, nil
	}
	if n >= 8 && string(buf[:8]) == "\x89PNG\r\n\x1a\n" {
		return FormatPNG, replay, nil
	}
	if n >= 12 && string(buf[:4]) == "RIFF" && string(buf[8:12]) == "WEBP" {
		return FormatWebP, replay, nil
	}

	return "", replay, fmt.Errorf("unrecognized image format")
}

// Dimensions decodes only the image header to read width and height.
func Dimensions(r io.Reader) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, fmt.Errorf("decoding image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// IsLowResolution reports whether a cover falls below 500x500. Unknown
// dimensions pass.
func IsLowResolution(w, h int) bool {
	if w == 0 || h == 0 {
		return false
	}
	return w < 500 || h < 500
}

// MIMEType maps a format name to its MIME type.
func MIMEType(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// PrepareForEmbed normalizes cover data for tag embedding: WebP converts
// to PNG and oversized images scale down to maxEmbedDimension. Returns
// the final bytes and format name.
func PrepareForEmbed(data []byte) ([]byte, string, error) {
	format, replay, err := DetectFormat(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("detecting format: %w", err)
	}

	img, _, err := image.Decode(replay)
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()
	newW, newH := fitDimensions(origW, origH, maxEmbedDimension, maxEmbedDimension)

	if newW == origW && newH == origH && format != FormatWebP {
		// Already embeddable as-is.
		return data, format, nil
	}

	if newW != origW || newH != origH {
		dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	outFormat := format
	if outFormat == FormatWebP {
		// No WebP encoder available.
		outFormat = FormatJPEG
	}

	out, err := encode(img, outFormat, 90)
	if err != nil {
		return nil, "", err
	}
	return out, outFormat, nil
}

// fitDimensions calculates the scaled dimensions that fit within maxW x maxH
// while preserving the aspect ratio. If the image already fits, returns
// original dimensions.
func fitDimensions(origW, origH, maxW, maxH int) (int, int) {
	if origW <= maxW && origH <= maxH {
		return origW, origH
	}

	ratioW := float64(maxW) / float64(origW)
	ratioH := float64(maxH) / float64(origH)
	ratio := ratioW
	if ratioH < ratioW {
		ratio = ratioH
	}

	newW := int(math.Round(float64(origW) * ratio))
	newH := int(math.Round(float64(origH) * ratio))

	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	return newW, newH
}

// encode writes an image in the specified format to a byte slice.
func encode(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encoding jpeg: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	return buf.Bytes(), nil
}
