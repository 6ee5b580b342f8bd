package filestore

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// onlyReader hides any Seek method of the wrapped reader
type onlyReader struct{ r io.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

func TestMimeDetector_Detect(t *testing.T) {
	d := NewMimeDetector(0)

	tests := []struct {
		name     string
		fileName string
		content  []byte
		expected string
	}{
		{name: "pdf", fileName: "report.pdf", content: []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj"), expected: "application/pdf"},
		{name: "png", fileName: "x.bin", content: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), expected: "image/png"},
		{name: "text strips charset", fileName: "notes", content: []byte("hello world"), expected: "text/plain"},
		{name: "empty", fileName: "empty.txt", content: nil, expected: DefaultContentType},
		{name: "unknown binary uses extension", fileName: "data.json", content: []byte{0x00, 0x01, 0x02, 0xff}, expected: "application/json"},
		{name: "unknown binary without extension", fileName: "blob", content: []byte{0x00, 0x01, 0x02, 0xff}, expected: DefaultContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, body, err := d.Detect(tt.fileName, onlyReader{bytes.NewReader(tt.content)})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ct)

			replayed, err := io.ReadAll(body)
			require.NoError(t, err)
			assert.Equal(t, len(tt.content), len(replayed))
			assert.True(t, bytes.Equal(tt.content, replayed))
		})
	}
}

func TestMimeDetector_ReplaysBeyondLimit(t *testing.T) {
	d := NewMimeDetector(DefaultSniffLimit)
	content := strings.Repeat("a", DefaultSniffLimit*2+17)

	_, body, err := d.Detect("big.txt", onlyReader{strings.NewReader(content)})
	require.NoError(t, err)

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestMimeDetector_SeekableIsRewound(t *testing.T) {
	d := NewMimeDetector(16)
	r := strings.NewReader("skip:%PDF-1.4 body")
	_, err := r.Seek(5, io.SeekStart)
	require.NoError(t, err)

	ct, body, err := d.Detect("doc", r)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", ct)
	assert.Same(t, r, body)

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(got))
}

func TestMimeDetector_NilBody(t *testing.T) {
	_, _, err := NewMimeDetector(0).Detect("x", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMimeDetector_IndependentLimits(t *testing.T) {
	wide := NewMimeDetector(DefaultSniffLimit)
	narrow := NewMimeDetector(2)

	ct, _, err := wide.Detect("x", strings.NewReader("%PDF-1.4 hello"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", ct)

	ct, _, err = narrow.Detect("x", strings.NewReader("%PDF-1.4 hello"))
	require.NoError(t, err)
	assert.NotEqual(t, "application/pdf", ct)

	ct, _, err = wide.Detect("x", strings.NewReader("%PDF-1.4 hello"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", ct)
}
