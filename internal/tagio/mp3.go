package tagio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"

	"github.com/Override92/tid3/internal/track"
)

// mp3Codec handles ID3v2 tags.
type mp3Codec struct{}

func (c *mp3Codec) Read(path string) (*track.LocalTrack, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("opening ID3 tag: %w", err)
	}
	defer tag.Close() //nolint:errcheck

	tr := &track.LocalTrack{
		Path:        path,
		Title:       tag.Title(),
		Artist:      tag.Artist(),
		Album:       tag.Album(),
		AlbumArtist: textFrame(tag, "TPE2"),
		Genre:       tag.Genre(),
		Year:        parseUintPrefix(tag.Year()),
		Track:       parseUintPrefix(textFrame(tag, "TRCK")),
	}

	for _, frame := range tag.GetFrames(tag.CommonID("Comments")) {
		if cf, ok := frame.(id3v2.CommentFrame); ok {
			tr.Comment = cf.Text
			break
		}
	}
	return tr, nil
}

func (c *mp3Codec) Write(tr *track.LocalTrack) error {
	tag, err := id3v2.Open(tr.Path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("opening ID3 tag: %w", err)
	}
	defer tag.Close() //nolint:errcheck

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(tr.Title)
	tag.SetArtist(tr.Artist)
	tag.SetAlbum(tr.Album)
	tag.SetGenre(tr.Genre)

	setOrDelete := func(id, value string) {
		tag.DeleteFrames(id)
		if value != "" {
			tag.AddTextFrame(id, id3v2.EncodingUTF8, value)
		}
	}
	setOrDelete("TPE2", tr.AlbumArtist)
	setOrDelete("TRCK", uintText(tr.Track))
	if tr.Year > 0 {
		tag.SetYear(strconv.FormatUint(uint64(tr.Year), 10))
	} else {
		tag.DeleteFrames(tag.CommonID("Year"))
	}

	tag.DeleteFrames(tag.CommonID("Comments"))
	if tr.Comment != "" {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Text:     tr.Comment,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("saving ID3 tag: %w", err)
	}
	return nil
}

func textFrame(tag *id3v2.Tag, id string) string {
	return strings.TrimSpace(tag.GetTextFrame(id).Text)
}

// parseUintPrefix reads a numeric prefix, tolerating "5/12" style TRCK
// values and bare years. Returns 0 when nothing numeric leads the string.
func parseUintPrefix(s string) uint {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0
	}
	return uint(n)
}

func uintText(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}
