package acoustid

// AcoustID API response types.

// LookupResponse is the top-level response from the lookup endpoint.
// Status is "ok" on success; errors carry a message instead.
type LookupResponse struct {
	Status  string       `json:"status"`
	Error   *LookupError `json:"error,omitempty"`
	Results []Result     `json:"results"`
}

// LookupError is the error payload returned when status != "ok".
type LookupError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Result is one fingerprint match with its linked recordings.
type Result struct {
	ID         string      `json:"id"`
	Score      float64     `json:"score"` // match confidence 0-1
	Recordings []Recording `json:"recordings"`
}

// Recording is a MusicBrainz recording linked to a fingerprint.
type Recording struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Duration      float64        `json:"duration"`
	Artists       []Artist       `json:"artists"`
	ReleaseGroups []ReleaseGroup `json:"releasegroups"`
}

// Artist is a credited artist on a recording or release group.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ReleaseGroup is an album-level grouping a recording appears on.
type ReleaseGroup struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Type    string   `json:"type"`
	Artists []Artist `json:"artists"`
}
