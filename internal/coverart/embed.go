package coverart

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	flac "github.com/go-flac/go-flac"

	"github.com/Override92/tid3/internal/filesystem"
)

// Embed writes data as the front cover of the audio file at path,
// replacing any existing cover. The image is normalized first via
// PrepareForEmbed.
func Embed(path string, data []byte) error {
	prepared, format, err := PrepareForEmbed(data)
	if err != nil {
		return fmt.Errorf("preparing cover: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return embedMP3(path, prepared, format)
	case ".flac":
		return embedFLAC(path, prepared, format)
	default:
		return fmt.Errorf("unsupported file type: %s", path)
	}
}

// Extract returns the embedded front cover of the audio file at path, or
// nil when no cover is present.
func Extract(path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return extractMP3(path)
	case ".flac":
		return extractFLAC(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

func embedMP3(path string, data []byte, format string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("opening ID3 tag: %w", err)
	}
	defer tag.Close() //nolint:errcheck

	tag.DeleteFrames(tag.CommonID("Attached picture"))
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    MIMEType(format),
		PictureType: id3v2.PTFrontCover,
		Description: "Front cover",
		Picture:     data,
	})

	if err := tag.Save(); err != nil {
		return fmt.Errorf("saving ID3 tag: %w", err)
	}
	return nil
}

func extractMP3(path string) ([]byte, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("opening ID3 tag: %w", err)
	}
	defer tag.Close() //nolint:errcheck

	var fallback []byte
	for _, frame := range tag.GetFrames(tag.CommonID("Attached picture")) {
		pf, ok := frame.(id3v2.PictureFrame)
		if !ok {
			continue
		}
		if pf.PictureType == id3v2.PTFrontCover {
			return pf.Picture, nil
		}
		if fallback == nil {
			fallback = pf.Picture
		}
	}
	return fallback, nil
}

func embedFLAC(path string, data []byte, format string) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parsing FLAC file: %w", err)
	}

	picture, err := flacpicture.NewFromImageData(
		flacpicture.PictureTypeFrontCover,
		"Front cover",
		data,
		MIMEType(format),
	)
	if err != nil {
		return fmt.Errorf("building picture block: %w", err)
	}

	var kept []*flac.MetaDataBlock
	for _, block := range f.Meta {
		if block.Type != flac.Picture {
			kept = append(kept, block)
		}
	}
	pictureBlock := picture.Marshal()
	f.Meta = append(kept, &pictureBlock)

	if err := filesystem.WriteFileAtomic(path, f.Marshal(), 0o644); err != nil {
		return fmt.Errorf("saving FLAC file: %w", err)
	}
	return nil
}

func extractFLAC(path string) ([]byte, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing FLAC file: %w", err)
	}

	var fallback []byte
	for _, block := range f.Meta {
		if block.Type != flac.Picture {
			continue
		}
		picture, err := flacpicture.ParseFromMetaDataBlock(*block)
		if err != nil {
			continue
		}
		if picture.PictureType == flacpicture.PictureTypeFrontCover {
			return picture.ImageData, nil
		}
		if fallback == nil {
			fallback = picture.ImageData
		}
	}
	return fallback, nil
}

// EmbeddedDimensions reports the dimensions of the embedded cover, or
// zeros when the file has none.
func EmbeddedDimensions(path string) (width, height int, err error) {
	data, err := Extract(path)
	if err != nil {
		return 0, 0, err
	}
	if len(data) == 0 {
		return 0, 0, nil
	}
	return Dimensions(bytes.NewReader(data))
}
