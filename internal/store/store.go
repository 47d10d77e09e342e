// Package store is the remote document store the brew monitor persists to.
//
// Documents live at slash-separated paths whose last segment is the document
// id and whose prefix is the collection. Field values are normalized through
// JSON on write, so readers see float64 numbers and RFC3339Nano time strings
// regardless of what the writer passed in.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUnindexed is returned when a query orders by a field without an index.
	ErrUnindexed = errors.New("field is not indexed")
)

// Indexed fields may be used as Query.OrderBy.
var indexedFields = []string{FieldTimestamp, FieldCreatedDate}

// Fields is the content of a document.
type Fields map[string]any

// Document is a stored document with its location.
type Document struct {
	Path   string
	ID     string
	Fields Fields
}

// Query selects documents from one collection.
type Query struct {
	Collection string
	OrderBy    string // must be indexed; empty means insertion order
	Descending bool
	Limit      int // 0 means no limit
}

// Subscription is a live query registration.
type Subscription interface {
	// Cancel stops delivery. Once it returns the callback will not run again.
	// It must not be called from inside the subscription's own callback.
	Cancel()
}

// Store is the document store contract.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	// Set overwrites the whole document.
	Set(ctx context.Context, path string, fields Fields) error
	// Update merges fields into an existing document. A nil value stores null.
	Update(ctx context.Context, path string, fields Fields) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error
	// Add stores a new document under a generated id and returns the id.
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	// List returns every document of a collection in insertion order.
	List(ctx context.Context, collection string) ([]Document, error)
	Run(ctx context.Context, q Query) ([]Document, error)
	// Subscribe delivers the query result now and again after every change
	// to the collection, until cancelled.
	Subscribe(ctx context.Context, q Query, fn func([]Document, error)) (Subscription, error)
}

// IsIndexed reports whether field can be used to order a query.
func IsIndexed(field string) bool {
	for _, f := range indexedFields {
		if f == field {
			return true
		}
	}
	return false
}

func checkQuery(q Query) error {
	if q.Collection == "" {
		return errors.New("query has no collection")
	}
	if q.OrderBy != "" && !IsIndexed(q.OrderBy) {
		return fmt.Errorf("order by %q: %w", q.OrderBy, ErrUnindexed)
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

// normalize round-trips fields through JSON.
func normalize(fields Fields) (Fields, error) {
	if fields == nil {
		return Fields{}, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return decodeFields(raw)
}

func decodeFields(raw []byte) (Fields, error) {
	out := Fields{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return out, nil
}

// indexScore converts an indexed field value into a sortable score.
// Times score as Unix microseconds.
func indexScore(v any) (float64, bool) {
	switch t := v.(type) {
	case time.Time:
		return float64(t.UnixMicro()), true
	case string:
		ts, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return 0, false
		}
		return float64(ts.UnixMicro()), true
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}

// orderDocuments applies the ordering and limit of q to docs, which must be
// in insertion order. Documents without a usable OrderBy value are dropped.
func orderDocuments(docs []Document, q Query) []Document {
	if q.OrderBy != "" {
		type scored struct {
			doc   Document
			score float64
		}
		var ss []scored
		for _, d := range docs {
			if s, ok := indexScore(d.Fields[q.OrderBy]); ok {
				ss = append(ss, scored{d, s})
			}
		}
		sort.SliceStable(ss, func(i, j int) bool {
			if q.Descending {
				return ss[i].score > ss[j].score
			}
			return ss[i].score < ss[j].score
		})
		docs = make([]Document, len(ss))
		for i, s := range ss {
			docs[i] = s.doc
		}
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

// String returns a string field.
func (d Document) String(key string) (string, bool) {
	s, ok := d.Fields[key].(string)
	return s, ok
}

// Float returns a numeric field.
func (d Document) Float(key string) (float64, bool) {
	switch v := d.Fields[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Time returns a timestamp field. Numbers are read as Unix milliseconds.
func (d Document) Time(key string) (time.Time, bool) {
	switch v := d.Fields[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), true
	case int64:
		return time.UnixMilli(v).UTC(), true
	}
	return time.Time{}, false
}

// Has reports whether the field is present and not null.
func (d Document) Has(key string) bool {
	v, ok := d.Fields[key]
	return ok && v != nil
}

func encodeFields(fields Fields) ([]byte, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return raw, nil
}
