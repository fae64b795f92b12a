package tfunc

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// jsx renders a value as a JSX expression container holding a JavaScript
// literal, eg. `{"East Gate"}` or `{3}`. The JSON encoder escapes <, > and &
// along with U+2028/U+2029, so the result is always a valid expression
// regardless of the input text.
func jsx(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		return "", errors.Wrap(err, "jsx")
	}
	return "{" + string(bytes.TrimSpace(buf.Bytes())) + "}", nil
}
