package musicbrainz

// MusicBrainz web service response types.

// ReleaseSearchResponse is the top-level response from the release search endpoint.
type ReleaseSearchResponse struct {
	Created  string      `json:"created"`
	Count    int         `json:"count"`
	Offset   int         `json:"offset"`
	Releases []MBRelease `json:"releases"`
}

// MBRelease is a release as returned by the search endpoint.
type MBRelease struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Score        int             `json:"score"` // search relevance 0-100
	Date         string          `json:"date"`
	Country      string          `json:"country"`
	Status       string          `json:"status"`
	TrackCount   int             `json:"track-count"`
	ArtistCredit []ArtistCredit  `json:"artist-credit"`
	ReleaseGroup *MBReleaseGroup `json:"release-group"`
	Media        []MBMedium      `json:"media"`
}

// MBReleaseGroup is the release group a release belongs to.
type MBReleaseGroup struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	PrimaryType      string `json:"primary-type"`
	FirstReleaseDate string `json:"first-release-date"`
}

// ArtistCredit is one entry in an artist-credit list. JoinPhrase is the
// separator that follows the name ("feat. ", " & ").
type ArtistCredit struct {
	Name       string    `json:"name"`
	JoinPhrase string    `json:"joinphrase"`
	Artist     *MBArtist `json:"artist"`
}

// MBArtist is an artist reference inside a credit.
type MBArtist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SortName string `json:"sort-name"`
}

// ReleaseDetail is the release lookup response with recordings included.
type ReleaseDetail struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Date  string     `json:"date"`
	Media []MBMedium `json:"media"`
}

// MBMedium is one disc or side of a release.
type MBMedium struct {
	Position   int       `json:"position"`
	Format     string    `json:"format"`
	TrackCount int       `json:"track-count"`
	Tracks     []MBTrack `json:"tracks"`
}

// MBTrack is one track on a medium.
type MBTrack struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Position     int            `json:"position"`
	Number       string         `json:"number"`
	ArtistCredit []ArtistCredit `json:"artist-credit"`
	Recording    *MBRecording   `json:"recording"`
}

// MBRecording is the recording behind a track.
type MBRecording struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Length int    `json:"length"` // milliseconds
}
