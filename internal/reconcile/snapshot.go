package reconcile

import (
	"github.com/Override92/tid3/internal/provider"
	"github.com/Override92/tid3/internal/track"
)

// Snapshot is an immutable capture of a track's editable tag fields.
// Two snapshots exist per track during reconciliation: the original,
// captured once when the first comparison is built, and the proposed
// one projected from a candidate release.
type Snapshot struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	AlbumArtist string `json:"album_artist"`
	Genre       string `json:"genre"`
	Year        uint   `json:"year"`
	Track       uint   `json:"track"`
	Comment     string `json:"comment"`
}

// TakeSnapshot captures the current field values of tr.
func TakeSnapshot(tr *track.LocalTrack) Snapshot {
	return Snapshot{
		Title:       tr.Title,
		Artist:      tr.Artist,
		Album:       tr.Album,
		AlbumArtist: tr.AlbumArtist,
		Genre:       tr.Genre,
		Year:        tr.Year,
		Track:       tr.Track,
		Comment:     tr.Comment,
	}
}

// Restore writes every snapshot field back onto tr.
func (s Snapshot) Restore(tr *track.LocalTrack) {
	tr.Title = s.Title
	tr.Artist = s.Artist
	tr.Album = s.Album
	tr.AlbumArtist = s.AlbumArtist
	tr.Genre = s.Genre
	tr.Year = s.Year
	tr.Track = s.Track
	tr.Comment = s.Comment
}

// ProjectRelease builds a proposed snapshot from a candidate release.
// candTrack is the matching track inside the candidate's track list, when
// the source supplied one. Fields the source does not supply fall back to
// the corresponding preserveFrom value instead of going blank: fingerprint
// identification never supplies year, genre, or track number, and a basic
// discography search never supplies genre.
func ProjectRelease(candidate provider.CandidateRelease, candTrack *provider.CandidateTrack, preserveFrom *track.LocalTrack) Snapshot {
	snap := TakeSnapshot(preserveFrom)

	if candidate.Artist != "" {
		snap.Artist = candidate.Artist
		snap.AlbumArtist = candidate.Artist
	}
	if candidate.Title != "" {
		snap.Album = candidate.Title
	}
	if year := candidate.Year(); year > 0 {
		snap.Year = year
	}

	if candTrack != nil {
		if candTrack.Title != "" {
			snap.Title = candTrack.Title
		}
		if candTrack.Artist != "" {
			snap.Artist = candTrack.Artist
		}
		if candTrack.Position > 0 {
			snap.Track = uint(candTrack.Position)
		}
	}

	return snap
}
