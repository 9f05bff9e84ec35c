// Package encoding turns bank exports of unknown charset into UTF-8.
package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const peekSize = 4096

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Fallback is used when neither a BOM nor the heuristics settle the charset.
// French banks export in Windows-1252 far more often than in Latin-9.
const Fallback = "windows-1252"

// decoders maps chardet charset names to decoders. ISO-8859-1 is read as
// Windows-1252 since exports use the 0x80-0x9F range for "€" and typographic quotes.
var decoders = map[string]xencoding.Encoding{
	"ISO-8859-1":   charmap.Windows1252,
	"windows-1252": charmap.Windows1252,
	"ISO-8859-15":  charmap.ISO8859_15,
	"ISO-8859-9":   charmap.ISO8859_9,
	"UTF-16LE":     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"UTF-16BE":     unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
}

// Detect reports the charset of the input and returns a reader that decodes it to UTF-8.
//
// Detection order:
//  1. BOM (UTF-8 BOM is stripped; UTF-16 LE/BE is decoded)
//  2. Valid UTF-8 is passed through
//  3. chardet heuristics
//  4. Fallback
func Detect(r io.Reader) (string, io.Reader, error) {
	br := bufio.NewReader(r)

	buf, err := br.Peek(peekSize)
	if err != nil && err != io.EOF {
		return "", nil, fmt.Errorf("peek: %w", err)
	}

	switch {
	case bytes.HasPrefix(buf, bomUTF8):
		_, _ = br.Discard(len(bomUTF8))
		return "UTF-8", br, nil
	case bytes.HasPrefix(buf, bomUTF16LE):
		return "UTF-16LE", transform.NewReader(br, decoders["UTF-16LE"].NewDecoder()), nil
	case bytes.HasPrefix(buf, bomUTF16BE):
		return "UTF-16BE", transform.NewReader(br, decoders["UTF-16BE"].NewDecoder()), nil
	}

	if utf8.Valid(buf) {
		return "UTF-8", br, nil
	}

	if result, err := chardet.NewTextDetector().DetectBest(buf); err == nil {
		if result.Charset == "UTF-8" {
			return "UTF-8", br, nil
		}

		if dec, ok := decoders[result.Charset]; ok {
			return result.Charset, transform.NewReader(br, dec.NewDecoder()), nil
		}
	}

	return Fallback, transform.NewReader(br, decoders[Fallback].NewDecoder()), nil
}

// NewUTF8Reader is Detect without the charset name.
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	_, utf8r, err := Detect(r)
	return utf8r, err
}
