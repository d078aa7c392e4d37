package entities

import "time"

// Entry is a piece of content managed by the CMS. An entry owns its
// metadata rows and is linked to shared tags through a many-to-many
// relationship. ID is zero until the entry has been persisted.
type Entry struct {
	ID        int64             `json:"id"`
	Title     string            `json:"title"`
	Slug      string            `json:"slug"`
	Date      time.Time         `json:"date"`
	Author    string            `json:"author"`
	AccountID *int64            `json:"account_id,omitempty"`
	Excerpt   string            `json:"excerpt,omitempty"`
	Content   string            `json:"content"`
	Published bool              `json:"published"`
	Featured  bool              `json:"featured"`
	Image     *string           `json:"image,omitempty"`
	Tags      []Tag             `json:"tags,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Tag is shared across entries and identified by its unique slug.
// ID is zero until the tag has been persisted.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// HasTag reports whether the entry already carries the tag with the
// given id. Used when grouping joined rows, where the same tag appears
// once per metadata row.
func (e *Entry) HasTag(tagID int64) bool {
	for _, t := range e.Tags {
		if t.ID == tagID {
			return true
		}
	}
	return false
}
