// Package protocol groups the packet wire layers.
//
// Layering, bottom up:
//   - frame: 4-byte big-endian length prefix and payload I/O
//   - tlv: field-level type-length-value primitives
//   - codec: payload encodings (cbor, msgpack, json, binary, tlv) and compression
//   - packet: sync and context-aware adapters that join a codec to a frame stream
package protocol
