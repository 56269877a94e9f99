package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownKind = errors.New("unknown entity kind")

// EntityKind names the kind of record that carries an embedding.
type EntityKind string

const (
	KindDocument EntityKind = "document"
	KindTicket   EntityKind = "ticket"
)

// Kinds lists every embeddable kind in a fixed order.
var Kinds = []EntityKind{KindDocument, KindTicket}

func ParseEntityKind(s string) (EntityKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "document", "documents", "doc", "docs":
		return KindDocument, nil
	case "ticket", "tickets":
		return KindTicket, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// EntityKey identifies one embeddable record. It is the dedup key of the
// embedding queue.
type EntityKey struct {
	Kind EntityKind
	ID   string
}

func (k EntityKey) String() string {
	return string(k.Kind) + ":" + k.ID
}

// EmbeddedEntity is a search candidate: a record whose vector has been computed.
type EmbeddedEntity struct {
	Kind            EntityKind
	ID              string
	Title           string
	Vector          []float32
	VectorUpdatedAt time.Time
	DepartmentID    *string
	AssignedTo      *string
}

func textForEmbedding(title, body string) string {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	switch {
	case title == "":
		return body
	case body == "":
		return title
	}
	return title + "\n\n" + body
}
