// Package wsproto is the wire encoding shared by the broadcast websocket
// channels the HTTP surface exposes: state snapshots, voice states and
// live splits all marshal through Encode so their wire format changes in
// exactly one place. The editor-claim channel exchanges JSON text frames
// and does not use this package.
package wsproto

import "github.com/vmihailenco/msgpack/v5"

// Encode marshals v with MessagePack, the same wire format the pack's
// LiveKit data-channel protocol uses.
func Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode unmarshals data produced by Encode into v.
func Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
