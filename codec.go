package wskeep

import (
	"encoding/json"
	"fmt"

	"github.com/wskeep/wskeep/socket"
)

// decodePayload turns a raw frame into a message payload. Textual frames
// are JSON-parsed when possible; anything that does not parse stays the
// verbatim string, because plain-text protocols are valid input, not
// errors. Binary frames pass through unchanged.
func decodePayload(fr socket.Frame) any {
	if fr.Binary {
		return fr.Data
	}
	var v any
	if err := json.Unmarshal(fr.Data, &v); err == nil {
		return v
	}
	return string(fr.Data)
}

// encodePayload prepares an outbound payload: strings and raw bytes pass
// verbatim, everything else is JSON-marshaled.
func encodePayload(v any) ([]byte, error) {
	switch p := v.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}
