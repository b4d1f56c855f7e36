// Package chapters holds the chapter collection model and its validator.
package chapters

import "encoding/json"

const (
	// KindCollection is the only accepted value of the "type" field.
	KindCollection = "chapter_collection"
	// CurrentVersion is the only accepted value of the "version" field.
	CurrentVersion = 1
)

type Topic struct {
	PrimaryText   string  `json:"primaryText"`
	SecondaryText *string `json:"secondaryText"`
}

type Chapter struct {
	Name              string  `json:"name"`
	Description       *string `json:"description"`
	PrimaryLanguage   string  `json:"primaryLanguage"`
	SecondaryLanguage *string `json:"secondaryLanguage"`
	Topics            []Topic `json:"topics"`
}

// MarshalJSON writes a nil Topics slice as [].
func (c Chapter) MarshalJSON() ([]byte, error) {
	type plain Chapter
	if c.Topics == nil {
		c.Topics = []Topic{}
	}
	return json.Marshal(plain(c))
}

// Collection is the validated generation result.
type Collection struct {
	Kind     string    `json:"type"`
	Version  int       `json:"version"`
	Chapters []Chapter `json:"chapters"`
}

// MarshalJSON writes a nil Chapters slice as [].
func (c Collection) MarshalJSON() ([]byte, error) {
	type plain Collection
	if c.Chapters == nil {
		c.Chapters = []Chapter{}
	}
	return json.Marshal(plain(c))
}

// NewCollection wraps chapters with the constant kind and version.
func NewCollection(chapters ...Chapter) *Collection {
	if chapters == nil {
		chapters = []Chapter{}
	}
	return &Collection{Kind: KindCollection, Version: CurrentVersion, Chapters: chapters}
}
