package modelcard

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrMalformedFrontmatter is returned when a card opens a frontmatter block
// that cannot be decoded as YAML.
var ErrMalformedFrontmatter = errors.New("modelcard: malformed frontmatter")

var delimiter = []byte("---")

// Parse extracts the YAML frontmatter from a model card README and decodes
// the keys hubgate reads. A README without a frontmatter block yields an
// empty card: no metadata means the model stays opted in and carries no
// pipeline tag. Unknown keys are ignored; cards are authored freely and the
// strict decoding used for configuration files does not apply here.
func Parse(readme []byte) (*Card, error) {
	block, ok := frontmatter(readme)
	if !ok {
		return &Card{}, nil
	}

	var card Card
	if err := yaml.Unmarshal(block, &card); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrontmatter, err)
	}
	return &card, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(readme string) (*Card, error) {
	return Parse([]byte(readme))
}

// frontmatter returns the YAML block between the leading "---" line and the
// next "---" line. Both LF and CRLF line endings are tolerated.
func frontmatter(readme []byte) ([]byte, bool) {
	rest := bytes.TrimPrefix(readme, []byte("\ufeff"))
	if !bytes.HasPrefix(rest, delimiter) {
		return nil, false
	}
	rest = rest[len(delimiter):]

	// The opening delimiter must be alone on its line.
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimRight(rest[:nl], " \t\r")) != 0 {
		return nil, false
	}
	rest = rest[nl+1:]

	for off := 0; off < len(rest); {
		lineEnd := bytes.IndexByte(rest[off:], '\n')
		var line []byte
		if lineEnd < 0 {
			line = rest[off:]
			lineEnd = len(rest) - off
		} else {
			line = rest[off : off+lineEnd]
		}
		if string(bytes.TrimRight(line, " \t\r")) == string(delimiter) {
			return rest[:off], true
		}
		off += lineEnd + 1
	}
	return nil, false
}
