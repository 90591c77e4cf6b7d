package tagio

import (
	"fmt"
	"strings"

	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	"github.com/Override92/tid3/internal/filesystem"
	"github.com/Override92/tid3/internal/track"
)

// flacCodec handles Vorbis comments in FLAC files.
type flacCodec struct{}

func (c *flacCodec) Read(path string) (*track.LocalTrack, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing FLAC file: %w", err)
	}

	tr := &track.LocalTrack{Path: path}

	comment := findVorbisComment(f)
	if comment == nil {
		return tr, nil
	}

	tr.Title = vorbisField(comment, flacvorbis.FIELD_TITLE)
	tr.Artist = vorbisField(comment, flacvorbis.FIELD_ARTIST)
	tr.Album = vorbisField(comment, flacvorbis.FIELD_ALBUM)
	tr.AlbumArtist = vorbisField(comment, "ALBUMARTIST")
	tr.Genre = vorbisField(comment, flacvorbis.FIELD_GENRE)
	tr.Year = parseUintPrefix(vorbisField(comment, flacvorbis.FIELD_DATE))
	tr.Track = parseUintPrefix(vorbisField(comment, flacvorbis.FIELD_TRACKNUMBER))
	tr.Comment = vorbisField(comment, flacvorbis.FIELD_DESCRIPTION)
	return tr, nil
}

func (c *flacCodec) Write(tr *track.LocalTrack) error {
	f, err := flac.ParseFile(tr.Path)
	if err != nil {
		return fmt.Errorf("parsing FLAC file: %w", err)
	}

	comment := flacvorbis.New()
	addField := func(key, value string) {
		if value != "" {
			_ = comment.Add(key, value)
		}
	}
	addField(flacvorbis.FIELD_TITLE, tr.Title)
	addField(flacvorbis.FIELD_ARTIST, tr.Artist)
	addField(flacvorbis.FIELD_ALBUM, tr.Album)
	addField("ALBUMARTIST", tr.AlbumArtist)
	addField(flacvorbis.FIELD_GENRE, tr.Genre)
	addField(flacvorbis.FIELD_DATE, uintText(tr.Year))
	addField(flacvorbis.FIELD_TRACKNUMBER, uintText(tr.Track))
	addField(flacvorbis.FIELD_DESCRIPTION, tr.Comment)

	// Replace any existing comment block, keeping all other metadata.
	var kept []*flac.MetaDataBlock
	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			kept = append(kept, block)
		}
	}
	commentBlock := comment.Marshal()
	f.Meta = append(kept, &commentBlock)

	if err := filesystem.WriteFileAtomic(tr.Path, f.Marshal(), 0o644); err != nil {
		return fmt.Errorf("saving FLAC file: %w", err)
	}
	return nil
}

func findVorbisComment(f *flac.File) *flacvorbis.MetaDataBlockVorbisComment {
	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		comment, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			continue
		}
		return comment
	}
	return nil
}

func vorbisField(comment *flacvorbis.MetaDataBlockVorbisComment, key string) string {
	values, err := comment.Get(key)
	if err != nil || len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
