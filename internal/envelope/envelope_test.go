package envelope

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/timevault/internal/common"
)

func rawEnvelope(header string, tail []byte) []byte {
	out := append([]byte("IEOMD"), Version)
	out = binary.BigEndian.AppendUint32(out, uint32(len(header)))
	out = append(out, header...)
	return append(out, tail...)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		text string
		atts []Attachment
	}{
		{"text only", "hello future", nil},
		{"unicode text", "привет 🔒 <b>&</b>", nil},
		{"attachments only", "", []Attachment{{Name: "a.bin", Type: "application/octet-stream", Data: []byte{0, 1, 2}}}},
		{"empty name and type", "", []Attachment{{Name: "", Type: "", Data: []byte("raw")}}},
		{"mixed", "see attached", []Attachment{
			{Name: "photo.jpg", Type: "image/jpeg", Data: []byte("jpegbytes")},
			{Name: "notes.txt", Type: "text/plain", Data: []byte("x")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Encode(tt.text, tt.atts)
			require.True(t, IsEnvelope(b))

			p, err := Decode(b)
			require.NoError(t, err)
			assert.Equal(t, tt.text, p.Text)
			require.Len(t, p.Attachments, len(tt.atts))
			for i := range tt.atts {
				assert.Equal(t, tt.atts[i], p.Attachments[i])
			}
		})
	}
}

func TestEncode_SizeAccounting(t *testing.T) {
	atts := []Attachment{{Name: "a", Type: "t", Data: make([]byte, 100)}, {Name: "b", Type: "t", Data: make([]byte, 23)}}
	b := Encode("msg", atts)
	hlen := binary.BigEndian.Uint32(b[6:10])
	assert.Equal(t, 10+int(hlen)+123, len(b))
}

func TestDecode_Legacy(t *testing.T) {
	p, err := Decode([]byte("just some old text"))
	require.NoError(t, err)
	assert.Equal(t, "just some old text", p.Text)
	assert.NotNil(t, p.Attachments)
	assert.Empty(t, p.Attachments)

	// truncated prefixes are legacy text, never a panic
	for _, in := range [][]byte{nil, []byte("IEO"), []byte("IEOMD"), append([]byte("IEOMD"), 2, 0, 0)} {
		p, err := Decode(in)
		require.NoError(t, err)
		assert.Equal(t, string(in), p.Text)
	}
}

func TestDecode_LegacyInvalidUTF8(t *testing.T) {
	p, err := Decode([]byte{'o', 'k', 0xff})
	require.NoError(t, err)
	assert.Equal(t, "ok\uFFFD", p.Text)
}

func TestDecode_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"missing length", append([]byte("IEOMD"), Version, 0, 0)},
		{"header overrun", func() []byte {
			b := rawEnvelope(`{"v":1}`, nil)
			binary.BigEndian.PutUint32(b[6:10], 1000)
			return b
		}()},
		{"invalid json", rawEnvelope(`{"v":1,`, nil)},
		{"not an object", rawEnvelope(`[1]`, nil)},
		{"wrong version", rawEnvelope(`{"v":2,"text":""}`, nil)},
		{"missing version", rawEnvelope(`{"text":""}`, nil)},
		{"attachments not a list", rawEnvelope(`{"v":1,"attachments":{}}`, nil)},
		{"missing size", rawEnvelope(`{"v":1,"attachments":[{"name":"a"}]}`, []byte("x"))},
		{"negative size", rawEnvelope(`{"v":1,"attachments":[{"size":-1}]}`, []byte("x"))},
		{"fractional size", rawEnvelope(`{"v":1,"attachments":[{"size":1.5}]}`, []byte("xx"))},
		{"string size", rawEnvelope(`{"v":1,"attachments":[{"size":"1"}]}`, []byte("x"))},
		{"short data", rawEnvelope(`{"v":1,"attachments":[{"size":4}]}`, []byte("xyz"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			assert.ErrorIs(t, err, common.ErrCorruptPayload)
		})
	}
}

func TestDecode_MetadataDefaults(t *testing.T) {
	b := rawEnvelope(`{"v":1,"text":"hi","attachments":[{"size":2},{"name":7,"type":null,"size":1},{"name":"","type":"","size":1}]}`, []byte("abcd"))

	p, err := Decode(b)
	require.NoError(t, err)
	require.Len(t, p.Attachments, 3)
	assert.Equal(t, Attachment{Name: DefaultAttachmentName, Type: DefaultAttachmentType, Data: []byte("ab")}, p.Attachments[0])
	assert.Equal(t, Attachment{Name: DefaultAttachmentName, Type: DefaultAttachmentType, Data: []byte("c")}, p.Attachments[1])
	assert.Equal(t, Attachment{Data: []byte("d")}, p.Attachments[2], "explicit empty strings are kept")
	assert.Equal(t, 4, p.TotalSize())
}

func TestDecode_DoesNotAliasInput(t *testing.T) {
	b := Encode("", []Attachment{{Name: "a", Type: "t", Data: []byte("data")}})
	p, err := Decode(b)
	require.NoError(t, err)

	common.WipeByteArray(b)
	assert.Equal(t, []byte("data"), p.Attachments[0].Data)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Validate("", nil), ErrEmptyPayload)
	assert.ErrorIs(t, Validate("x", []Attachment{{Name: "e"}}), ErrEmptyAttachment)
	assert.NoError(t, Validate("x", nil))
	assert.NoError(t, Validate("", []Attachment{{Data: []byte{1}}}))
}
