package track

import "path/filepath"

// LocalTrack is a single audio file in the working set. The reconciliation
// engine reads and writes its tag fields; the working set owns its lifecycle.
type LocalTrack struct {
	Path        string `json:"path"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	AlbumArtist string `json:"album_artist"`
	Genre       string `json:"genre"`
	Year        uint   `json:"year"`  // 0 = unknown
	Track       uint   `json:"track"` // 0 = unknown
	Comment     string `json:"comment"`
}

// DisplayName returns a short label for logging: "Artist - Title", falling
// back to the file name when both tags are empty.
func (t *LocalTrack) DisplayName() string {
	switch {
	case t.Artist != "" && t.Title != "":
		return t.Artist + " - " + t.Title
	case t.Title != "":
		return t.Title
	default:
		return filepath.Base(t.Path)
	}
}

// SearchQuery builds the free-text query sent to discography sources.
// Album is preferred over title since release searches match on albums.
func (t *LocalTrack) SearchQuery() string {
	subject := t.Album
	if subject == "" {
		subject = t.Title
	}
	if t.Artist == "" {
		return subject
	}
	if subject == "" {
		return t.Artist
	}
	return t.Artist + " " + subject
}
