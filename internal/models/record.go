package models

import (
	"strconv"
	"strings"
	"time"
)

// Record is the read-only view of a domain record the indexer needs.
type Record interface {
	Key() UniqueID
	IndexTitle() string
	IndexBody() string
	CreatedAt() time.Time
	ModifiedAt() time.Time
}

// Note is a short free-form note.
type Note struct {
	ID       int64     `json:"id" db:"id"`
	Title    string    `json:"title" db:"title"`
	Body     string    `json:"body" db:"body"`
	Created  time.Time `json:"created" db:"created_at"`
	Modified time.Time `json:"modified" db:"modified_at"`
}

func (n *Note) Key() UniqueID         { return UniqueID{Kind: KindNote, ID: n.ID} }
func (n *Note) IndexTitle() string    { return n.Title }
func (n *Note) IndexBody() string     { return n.Body }
func (n *Note) CreatedAt() time.Time  { return n.Created }
func (n *Note) ModifiedAt() time.Time { return n.Modified }

// Text is a bibliographic text (book, article, paper).
type Text struct {
	ID       int64     `json:"id" db:"id"`
	Title    string    `json:"title" db:"title"`
	Author   string    `json:"author,omitempty" db:"author"`
	Year     int       `json:"year,omitempty" db:"year"`
	Abstract string    `json:"abstract,omitempty" db:"abstract"`
	Body     string    `json:"body,omitempty" db:"body"`
	Created  time.Time `json:"created" db:"created_at"`
	Modified time.Time `json:"modified" db:"modified_at"`

	// Source is the file a text was imported from; SourceStamp identifies the
	// file version (modification time and size) that was imported.
	Source      string `json:"source,omitempty" db:"source"`
	SourceStamp string `json:"-" db:"source_stamp"`
}

func (t *Text) Key() UniqueID         { return UniqueID{Kind: KindText, ID: t.ID} }
func (t *Text) IndexTitle() string    { return t.Title }
func (t *Text) CreatedAt() time.Time  { return t.Created }
func (t *Text) ModifiedAt() time.Time { return t.Modified }

// IndexBody joins author, year, abstract and body so all of them are searchable.
func (t *Text) IndexBody() string {
	parts := make([]string, 0, 4)
	if t.Author != "" {
		parts = append(parts, t.Author)
	}
	if t.Year != 0 {
		parts = append(parts, strconv.Itoa(t.Year))
	}
	if t.Abstract != "" {
		parts = append(parts, t.Abstract)
	}
	if t.Body != "" {
		parts = append(parts, t.Body)
	}
	return strings.Join(parts, " ")
}

// Person is a person referenced by notes and texts.
type Person struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Biography string    `json:"biography,omitempty" db:"biography"`
	Created   time.Time `json:"created" db:"created_at"`
	Modified  time.Time `json:"modified" db:"modified_at"`
}

func (p *Person) Key() UniqueID         { return UniqueID{Kind: KindPerson, ID: p.ID} }
func (p *Person) IndexTitle() string    { return p.Name }
func (p *Person) IndexBody() string     { return p.Biography }
func (p *Person) CreatedAt() time.Time  { return p.Created }
func (p *Person) ModifiedAt() time.Time { return p.Modified }
