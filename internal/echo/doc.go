// Package echo is a small request/echo application over packet adapters.
//
// A Client sends numbered Envelopes and a Server returns each one
// unchanged. Both ends work with any structured codec (cbor, msgpack,
// json, tlv), optionally compressed.
package echo
