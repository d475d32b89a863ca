package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a domain record type.
type Kind uint8

const (
	KindNote   Kind = 1
	KindText   Kind = 2
	KindPerson Kind = 3
)

// Kinds lists record kinds in full-reindex order.
var Kinds = []Kind{KindNote, KindText, KindPerson}

func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindText:
		return "text"
	case KindPerson:
		return "person"
	default:
		return fmt.Sprintf("kind%d", uint8(k))
	}
}

// ParseKind accepts a kind name ("note", "text", "person").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "note", "notes":
		return KindNote, nil
	case "text", "texts":
		return KindText, nil
	case "person", "persons", "people":
		return KindPerson, nil
	}
	return 0, fmt.Errorf("unknown record kind %q", s)
}

// UniqueID identifies one record across subsystems. It is comparable.
type UniqueID struct {
	Kind Kind
	ID   int64
}

// String renders "<kind>:<id>".
func (u UniqueID) String() string {
	return strconv.FormatUint(uint64(u.Kind), 10) + ":" + strconv.FormatInt(u.ID, 10)
}

// ParseUniqueID is the inverse of UniqueID.String.
func ParseUniqueID(s string) (UniqueID, error) {
	kindPart, idPart, ok := strings.Cut(s, ":")
	if !ok {
		return UniqueID{}, fmt.Errorf("invalid unique id %q: missing ':'", s)
	}
	kind, err := strconv.ParseUint(kindPart, 10, 8)
	if err != nil {
		return UniqueID{}, fmt.Errorf("invalid unique id %q: kind: %w", s, err)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return UniqueID{}, fmt.Errorf("invalid unique id %q: id: %w", s, err)
	}
	return UniqueID{Kind: Kind(kind), ID: id}, nil
}

// MarshalText encodes the id in its string form (JSON, yaml).
func (u UniqueID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText decodes the string form.
func (u *UniqueID) UnmarshalText(b []byte) error {
	parsed, err := ParseUniqueID(string(b))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
