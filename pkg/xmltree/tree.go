// Package xmltree writes nested scalar/map/sequence values as XML elements.
//
// A Map becomes child elements in insertion order; entries with an empty or
// numeric key are named item{N}. A Seq under a named key is written as one
// sibling element per item, each reusing that key. A Seq with no key (the
// root, or an item of another Seq) merges its map items into the enclosing
// element and writes its other items as item{N}.
package xmltree

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

type Kind int

const (
	KindInvalid Kind = iota
	KindScalar
	KindMap
	KindSeq
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMap:
		return "map"
	case KindSeq:
		return "sequence"
	default:
		return "invalid"
	}
}

// Value is a tagged union. Build it with Scalar, Map or Seq; the zero Value
// is invalid and fails to encode.
type Value struct {
	kind    Kind
	text    string
	entries []Entry
	items   []Value
}

type Entry struct {
	Key   string
	Value Value
}

func Scalar(text string) Value {
	return Value{kind: KindScalar, text: text}
}

func Int(n int) Value {
	return Scalar(strconv.Itoa(n))
}

// Bool renders as 1 or 0.
func Bool(b bool) Value {
	if b {
		return Scalar("1")
	}
	return Scalar("0")
}

func Map(entries ...Entry) Value {
	return Value{kind: KindMap, entries: entries}
}

func Seq(items ...Value) Value {
	return Value{kind: KindSeq, items: items}
}

func E(key string, v Value) Entry {
	return Entry{Key: key, Value: v}
}

func (v Value) Kind() Kind { return v.kind }

// Write emits the children of v (a Map or Seq) without an enclosing element.
func Write(w io.Writer, v Value) error {
	var b strings.Builder
	switch v.kind {
	case KindMap:
		if err := writeEntries(&b, v.entries); err != nil {
			return err
		}
	case KindSeq:
		if err := writeItems(&b, v.items); err != nil {
			return err
		}
	default:
		return &EncodingError{Path: "", Kind: v.kind, Reason: "root must be a map or a sequence"}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeEntries(b *strings.Builder, entries []Entry) error {
	for i, entry := range entries {
		name := entry.Key
		switch {
		case name == "":
			name = "item" + strconv.Itoa(i)
		case isNumeric(name):
			name = "item" + name
		case entry.Value.kind == KindSeq:
			if err := writeSiblings(b, name, entry.Value.items); err != nil {
				return err
			}
			continue
		}
		if err := writeElement(b, name, entry.Value); err != nil {
			return err
		}
	}
	return nil
}

// writeSiblings writes one name element per item. An empty sequence still
// produces a single empty element.
func writeSiblings(b *strings.Builder, name string, items []Value) error {
	if len(items) == 0 {
		return writeElement(b, name, Map())
	}
	for _, item := range items {
		if err := writeElement(b, name, item); err != nil {
			return err
		}
	}
	return nil
}

func writeItems(b *strings.Builder, items []Value) error {
	for i, item := range items {
		if item.kind == KindMap {
			if err := writeEntries(b, item.entries); err != nil {
				return err
			}
			continue
		}
		if err := writeElement(b, "item"+strconv.Itoa(i), item); err != nil {
			return err
		}
	}
	return nil
}

func writeElement(b *strings.Builder, name string, v Value) error {
	if !validName(name) {
		return &EncodingError{Path: name, Kind: v.kind, Reason: "invalid element name"}
	}

	switch v.kind {
	case KindScalar:
		fmt.Fprintf(b, "<%s>%s</%s>", name, Escape(v.text), name)
	case KindMap:
		b.WriteString("<" + name + ">")
		if err := writeEntries(b, v.entries); err != nil {
			return wrapPath(name, err)
		}
		b.WriteString("</" + name + ">")
	case KindSeq:
		b.WriteString("<" + name + ">")
		if err := writeItems(b, v.items); err != nil {
			return wrapPath(name, err)
		}
		b.WriteString("</" + name + ">")
	default:
		return &EncodingError{Path: name, Kind: v.kind, Reason: "unsupported value"}
	}
	return nil
}

// Repeated returns a Map whose entries all share key, so the element holding
// it gets one <key> child per item.
func Repeated(key string, items ...Value) Value {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, E(key, item))
	}
	return Map(entries...)
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Escape replaces the five markup characters with entities. Other
// characters, newlines included, are written unchanged.
func Escape(s string) string {
	return escaper.Replace(s)
}

func isNumeric(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == ':':
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r > 0x7f:
		case i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}

func wrapPath(name string, err error) error {
	if encErr, ok := err.(*EncodingError); ok {
		return &EncodingError{Path: name + "/" + encErr.Path, Kind: encErr.Kind, Reason: encErr.Reason}
	}
	return err
}
