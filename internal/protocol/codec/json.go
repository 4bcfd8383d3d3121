package codec

import jsoniter "github.com/json-iterator/go"

// Standard-library compatible: sorted map keys, HTML escaping, and a
// rejection of trailing data after the value.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonCodec struct{}

func JSON() Codec {
	return jsonCodec{}
}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return jsonAPI.Unmarshal(data, v)
}
