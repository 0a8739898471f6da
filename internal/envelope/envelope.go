// Package envelope packs a text message and any number of named binary
// attachments into the single byte sequence that gets encrypted.
//
// Wire layout:
//
//	[5]byte  magic "IEOMD"
//	[1]byte  version (1)
//	[4]byte  big-endian header length
//	[n]byte  JSON header {"v":1,"text":"...","attachments":[{"name","type","size"}]}
//	...      attachment bytes, concatenated in header order
//
// Input without the magic+version prefix is legacy raw UTF-8 text.
package envelope

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/timevault/internal/common"
)

const (
	// Version is the only envelope version this package reads and writes.
	Version = 1

	// DefaultAttachmentName and DefaultAttachmentType replace missing or
	// malformed attachment metadata on decode.
	DefaultAttachmentName = "attachment"
	DefaultAttachmentType = "application/octet-stream"

	magicString = "IEOMD"
	prefixLen   = len(magicString) + 1
	lengthLen   = 4
)

var magic = []byte(magicString)

var (
	ErrEmptyPayload    = errors.New("message text or at least one attachment is required")
	ErrEmptyAttachment = errors.New("attachment has no content")
)

// Attachment is a named binary blob carried next to the message text.
type Attachment struct {
	Name string
	Type string
	Data []byte
}

// Payload is the decoded content of an envelope.
type Payload struct {
	Text        string
	Attachments []Attachment
}

// TotalSize returns the number of attachment bytes in p.
func (p *Payload) TotalSize() int {
	n := 0
	for _, a := range p.Attachments {
		n += len(a.Data)
	}
	return n
}

type attachmentHeader struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

type header struct {
	V           int                `json:"v"`
	Text        string             `json:"text"`
	Attachments []attachmentHeader `json:"attachments"`
}

// Validate checks the content rules the encoder relies on: text may be empty
// only when there is at least one attachment, and every attachment carries
// data.
func Validate(text string, attachments []Attachment) error {
	if text == "" && len(attachments) == 0 {
		return ErrEmptyPayload
	}
	for i, a := range attachments {
		if len(a.Data) == 0 {
			return fmt.Errorf("%w: #%d %q", ErrEmptyAttachment, i, a.Name)
		}
	}
	return nil
}

// Encode builds an envelope. It has no failure modes; use Validate first
// when the input comes from a user.
func Encode(text string, attachments []Attachment) []byte {
	h := header{V: Version, Text: text, Attachments: make([]attachmentHeader, 0, len(attachments))}
	total := 0
	for _, a := range attachments {
		h.Attachments = append(h.Attachments, attachmentHeader{Name: a.Name, Type: a.Type, Size: len(a.Data)})
		total += len(a.Data)
	}

	// header only holds strings and ints
	hb, _ := json.Marshal(h)

	out := make([]byte, 0, prefixLen+lengthLen+len(hb)+total)
	out = append(out, magic...)
	out = append(out, Version)
	out = binary.BigEndian.AppendUint32(out, uint32(len(hb)))
	out = append(out, hb...)
	for _, a := range attachments {
		out = append(out, a.Data...)
	}
	return out
}

// IsEnvelope reports whether b starts with the magic marker and a supported
// version byte.
func IsEnvelope(b []byte) bool {
	return len(b) >= prefixLen && bytes.Equal(b[:len(magic)], magic) && b[len(magic)] == Version
}

// Decode parses an envelope. Bytes without the envelope prefix decode as
// legacy text with no attachments and never fail. For real envelopes the
// byte accounting is strict while attachment metadata is not.
func Decode(b []byte) (*Payload, error) {
	if !IsEnvelope(b) {
		return &Payload{Text: strings.ToValidUTF8(string(b), "\uFFFD"), Attachments: []Attachment{}}, nil
	}

	rest := b[prefixLen:]
	if len(rest) < lengthLen {
		return nil, fmt.Errorf("%w: truncated header length", common.ErrCorruptPayload)
	}
	hlen := binary.BigEndian.Uint32(rest[:lengthLen])
	rest = rest[lengthLen:]
	if uint64(hlen) > uint64(len(rest)) {
		return nil, fmt.Errorf("%w: header length %d exceeds %d remaining bytes", common.ErrCorruptPayload, hlen, len(rest))
	}

	text, entries, err := parseHeader(rest[:hlen])
	if err != nil {
		return nil, err
	}
	rest = rest[hlen:]

	p := &Payload{Text: text, Attachments: make([]Attachment, 0, len(entries))}
	for i, e := range entries {
		size, err := parseSize(e["size"])
		if err != nil {
			return nil, fmt.Errorf("%w: attachment #%d: %v", common.ErrCorruptPayload, i, err)
		}
		if size > uint64(len(rest)) {
			return nil, fmt.Errorf("%w: attachment #%d needs %d bytes, %d remaining", common.ErrCorruptPayload, i, size, len(rest))
		}
		data := make([]byte, size)
		copy(data, rest[:size])
		rest = rest[size:]

		p.Attachments = append(p.Attachments, Attachment{
			Name: stringOr(e["name"], DefaultAttachmentName),
			Type: stringOr(e["type"], DefaultAttachmentType),
			Data: data,
		})
	}
	return p, nil
}

func parseHeader(raw []byte) (string, []map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return "", nil, fmt.Errorf("%w: header is not a JSON object", common.ErrCorruptPayload)
	}

	var v int
	if err := json.Unmarshal(fields["v"], &v); err != nil || v != Version {
		return "", nil, fmt.Errorf("%w: unsupported header version", common.ErrCorruptPayload)
	}

	text := stringOr(fields["text"], "")

	var entries []map[string]json.RawMessage
	if a, ok := fields["attachments"]; ok && string(a) != "null" {
		if err := json.Unmarshal(a, &entries); err != nil {
			return "", nil, fmt.Errorf("%w: attachments is not a list of objects", common.ErrCorruptPayload)
		}
	}
	return text, entries, nil
}

// parseSize accepts any JSON number with an integral, non-negative value.
func parseSize(raw json.RawMessage) (uint64, error) {
	if len(raw) == 0 {
		return 0, errors.New("missing size")
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, errors.New("size is not a number")
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errors.New("size is not finite")
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, fmt.Errorf("invalid size %s", n)
	}
	return uint64(f), nil
}

// stringOr returns def only when raw is absent or not a JSON string; an
// explicit "" is kept.
func stringOr(raw json.RawMessage, def string) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return def
	}
	return s
}
