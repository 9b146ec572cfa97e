package encoding

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultName is the encoding used when none is specified.
const DefaultName = "utf-8"

// Decoder converts raw byte chunks from a stream into text.
//
// Decoder is stateful: bytes of an incomplete multi-byte sequence at the
// end of one Decode call are carried over and combined with the next
// call's input. Invalid sequences are replaced with U+FFFD; Decode never
// fails. A Decoder is not safe for concurrent use; each stream gets its
// own instance.
type Decoder struct {
	tr    transform.Transformer
	carry []byte
	dst   []byte
}

// NewDecoder creates a decoder for the named IANA encoding.
// An empty name selects UTF-8.
func NewDecoder(name string) (*Decoder, error) {
	enc, err := resolve(name)
	if err != nil {
		return nil, err
	}
	return &Decoder{
		tr:  enc.NewDecoder().Transformer,
		dst: make([]byte, 4096),
	}, nil
}

// resolve maps an IANA encoding name to an encoding.Encoding.
func resolve(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, DefaultName) || strings.EqualFold(name, "utf8") {
		return unicode.UTF8, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("resolve encoding %q: %w", name, err)
	}
	if enc == nil {
		// The index knows the name but has no decoder for it.
		return nil, fmt.Errorf("encoding %q is not supported", name)
	}
	return enc, nil
}

// Decode appends p to any carried bytes and returns all text that can be
// decoded so far. Bytes forming an incomplete trailing sequence are held
// back for the next call.
func (d *Decoder) Decode(p []byte) string {
	src := p
	if len(d.carry) > 0 {
		src = append(d.carry, p...)
		d.carry = nil
	}
	return d.decode(src, false)
}

// Flush decodes any carried bytes as final input. A truncated trailing
// sequence becomes U+FFFD. Call once at end of stream.
func (d *Decoder) Flush() string {
	src := d.carry
	d.carry = nil
	return d.decode(src, true)
}

// Reset discards all carried state.
func (d *Decoder) Reset() {
	d.carry = nil
	d.tr.Reset()
}

func (d *Decoder) decode(src []byte, atEOF bool) string {
	if len(src) == 0 && !atEOF {
		return ""
	}

	var out strings.Builder
	for {
		nDst, nSrc, err := d.tr.Transform(d.dst, src, atEOF)
		out.Write(d.dst[:nDst])
		src = src[nSrc:]

		switch err {
		case nil:
			if len(src) > 0 {
				// Transformer made no progress without an error;
				// avoid spinning.
				continue
			}
			return out.String()
		case transform.ErrShortDst:
			d.dst = make([]byte, len(d.dst)*2)
		case transform.ErrShortSrc:
			// Incomplete sequence at the end of input. Hold the
			// remainder until more bytes arrive.
			d.carry = append(d.carry, src...)
			return out.String()
		default:
			// Decoders are constructed with replacement semantics;
			// any other error means the remaining input cannot be
			// interpreted at all. Substitute and drop one byte to
			// make progress.
			if len(src) > 0 {
				out.WriteRune('�')
				src = src[1:]
				continue
			}
			return out.String()
		}
	}
}
