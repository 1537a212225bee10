package ingest

import (
	"io"
	"strings"
)

// utf8BOM is the byte order mark Windows tools prepend to UTF-8 files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomSkippingReader strips a leading UTF-8 BOM from the wrapped reader.
type bomSkippingReader struct {
	r       io.Reader
	checked bool
	held    []byte
}

func newBOMSkippingReader(r io.Reader) *bomSkippingReader {
	return &bomSkippingReader{r: r}
}

func (b *bomSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		buf := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(b.r, buf)
		if n > 0 && !(n == len(utf8BOM) && string(buf) == string(utf8BOM)) {
			b.held = buf[:n]
		}
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
	}

	if len(b.held) > 0 {
		n := copy(p, b.held)
		b.held = b.held[n:]
		return n, nil
	}

	return b.r.Read(p)
}

// sanitizeField replaces invalid UTF-8 sequences in a parsed cell with '?'.
// csv parsing is byte-oriented, so sanitizing per field keeps the reader
// streaming without a byte-level UTF-8 state machine.
func sanitizeField(s string) string {
	return strings.ToValidUTF8(s, "?")
}
