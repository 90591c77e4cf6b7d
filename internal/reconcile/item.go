package reconcile

import "strings"

// Field names one of the eight editable tag fields.
type Field string

// Tracked fields, in comparison display order.
const (
	FieldTitle       Field = "Title"
	FieldArtist      Field = "Artist"
	FieldAlbum       Field = "Album"
	FieldAlbumArtist Field = "Album Artist"
	FieldGenre       Field = "Genre"
	FieldYear        Field = "Year"
	FieldTrack       Field = "Track"
	FieldComment     Field = "Comment"
)

// AllFields returns the tracked fields in display order.
func AllFields() []Field {
	return []Field{
		FieldTitle,
		FieldArtist,
		FieldAlbum,
		FieldAlbumArtist,
		FieldGenre,
		FieldYear,
		FieldTrack,
		FieldComment,
	}
}

// Status is the derived state of a comparison item.
type Status string

// Item states.
const (
	StatusNoChange Status = "no change"
	StatusNew      Status = "new"
	StatusChanged  Status = "changed"
	StatusRemoved  Status = "removed"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Item is the comparison of one tag field between the original snapshot
// and the proposed snapshot.
type Item struct {
	Field    Field  `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`

	IsChanged  bool `json:"is_changed"`
	IsNew      bool `json:"is_new"`
	IsAccepted bool `json:"is_accepted"`
	IsRejected bool `json:"is_rejected"`
}

// newItem computes the initial comparison state from the two values.
// IsChanged requires both values non-empty and differing case-insensitively
// after trimming; IsNew requires an empty original and a non-empty new value.
func newItem(field Field, oldValue, newValue string) *Item {
	oldTrim := strings.TrimSpace(oldValue)
	newTrim := strings.TrimSpace(newValue)
	return &Item{
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		IsChanged: oldTrim != "" && newTrim != "" && !strings.EqualFold(oldTrim, newTrim),
		IsNew:     oldTrim == "" && newTrim != "",
	}
}

// isRemoved reports whether the proposed snapshot blanks a populated field.
func (i *Item) isRemoved() bool {
	return strings.TrimSpace(i.OldValue) != "" && strings.TrimSpace(i.NewValue) == ""
}

// HasDifference reports whether the item represents any change at all.
func (i *Item) HasDifference() bool {
	return i.IsChanged || i.IsNew || i.isRemoved()
}

// CanAccept reports whether Accept is a legal action for this item.
// An unchanged field can never be accepted; an already-accepted item
// cannot be accepted again, but a rejected one can.
func (i *Item) CanAccept() bool {
	return i.HasDifference() && !i.IsAccepted
}

// CanReject reports whether Reject is a legal action for this item.
func (i *Item) CanReject() bool {
	return i.HasDifference() && !i.IsRejected
}

// Status derives the display state from the item's flags and values.
func (i *Item) Status() Status {
	switch {
	case i.IsAccepted:
		return StatusAccepted
	case i.IsRejected:
		return StatusRejected
	case i.IsNew:
		return StatusNew
	case i.IsChanged:
		return StatusChanged
	case i.isRemoved():
		return StatusRemoved
	default:
		return StatusNoChange
	}
}
