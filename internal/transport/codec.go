// Package transport implements the Transport layer (C14) of SPEC_FULL.md
// §6: a thin WebSocket broadcaster for periodic WorldUpdate frames plus a
// minimal REST admin surface, reusing the teacher's admin-bearer-token and
// net/http-mux conventions (_examples/tobyjaguar-mini-world/internal/api/
// server.go) for REST, and smilemakc-mbflow's hub/client WebSocket pattern
// (_examples/smilemakc-mbflow/internal/infrastructure/websocket) for
// streaming. It is intentionally thin: enough to exercise the interfaces
// end to end, not a production gateway.
package transport

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec is SPEC_FULL.md §6's two-codec contract: Encode/Decode a payload as
// either MessagePack or JSON. Decode always tries MessagePack first and
// falls back to JSON on failure, per spec.
type Codec string

const (
	CodecJSON    Codec = "json"
	CodecMsgpack Codec = "msgpack"
)

// Encode serializes v using the codec named by c. An unrecognized codec
// name falls back to JSON.
func Encode(c Codec, v any) ([]byte, error) {
	if c == CodecMsgpack {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}

// Decode deserializes data into v. It tries MessagePack first (the binary
// frame format is self-describing enough that attempting it is cheap),
// falling back to JSON on failure, matching SPEC_FULL.md §6's decoder
// fallback contract regardless of what the caller believes the codec is.
func Decode(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	return dec.Decode(v)
}
