package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Reader is the interface for reading subtitle files
type Reader interface {
	Read(path string) (*File, error)
}

// Writer is the interface for writing subtitle files
type Writer interface {
	Write(path string, subtitle *File) error
}

// Entry represents a single subtitle entry. Entries read from a source file
// are never mutated; a translated variant is a new Entry produced by
// WithText.
type Entry struct {
	Index     int           // subtitle index, stable across translation
	StartTime time.Duration // start time
	EndTime   time.Duration // end time
	Text      string        // subtitle text, may contain embedded newlines
}

// WithText returns a copy of the entry with the text replaced. Index and
// timestamps are preserved.
func (e Entry) WithText(text string) Entry {
	return Entry{
		Index:     e.Index,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Text:      text,
	}
}

// File represents a subtitle file
type File struct {
	Entries  []Entry
	Language language.Tag
	Format   string // e.g. SRT
}
