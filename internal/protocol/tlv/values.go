package tlv

import (
	"encoding/binary"
	"fmt"
)

func NewU8(id uint16, v uint8) Field {
	return Field{ID: id, Type: TypeU8, Value: []byte{v}}
}

func NewU16(id uint16, v uint16) Field {
	return Field{ID: id, Type: TypeU16, Value: binary.BigEndian.AppendUint16(nil, v)}
}

func NewU32(id uint16, v uint32) Field {
	return Field{ID: id, Type: TypeU32, Value: binary.BigEndian.AppendUint32(nil, v)}
}

func NewU64(id uint16, v uint64) Field {
	return Field{ID: id, Type: TypeU64, Value: binary.BigEndian.AppendUint64(nil, v)}
}

func NewBool(id uint16, v bool) Field {
	b := byte(0)
	if v {
		b = 1
	}
	return Field{ID: id, Type: TypeBool, Value: []byte{b}}
}

func NewString(id uint16, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

// NewBytes copies v.
func NewBytes(id uint16, v []byte) Field {
	buf := make([]byte, len(v))
	copy(buf, v)
	return Field{ID: id, Type: TypeBytes, Value: buf}
}

// Uint reads any unsigned field as uint64.
func (f Field) Uint() (uint64, error) {
	w := Width(f.Type)
	if w < 0 || f.Type == TypeBool {
		return 0, fmt.Errorf("%w: field %d type %d is not unsigned", ErrTypeMismatch, f.ID, f.Type)
	}
	if len(f.Value) != w {
		return 0, fmt.Errorf("%w: field %d has %d bytes, want %d", ErrInvalidWidth, f.ID, len(f.Value), w)
	}
	switch w {
	case 1:
		return uint64(f.Value[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(f.Value)), nil
	case 4:
		return uint64(binary.BigEndian.Uint32(f.Value)), nil
	default:
		return binary.BigEndian.Uint64(f.Value), nil
	}
}

func (f Field) U8() (uint8, error) {
	if err := MustType(f, TypeU8); err != nil {
		return 0, err
	}
	v, err := f.Uint()
	return uint8(v), err
}

func (f Field) U16() (uint16, error) {
	if err := MustType(f, TypeU16); err != nil {
		return 0, err
	}
	v, err := f.Uint()
	return uint16(v), err
}

func (f Field) U32() (uint32, error) {
	if err := MustType(f, TypeU32); err != nil {
		return 0, err
	}
	v, err := f.Uint()
	return uint32(v), err
}

func (f Field) U64() (uint64, error) {
	if err := MustType(f, TypeU64); err != nil {
		return 0, err
	}
	return f.Uint()
}

func (f Field) Bool() (bool, error) {
	if err := MustType(f, TypeBool); err != nil {
		return false, err
	}
	if len(f.Value) != 1 {
		return false, fmt.Errorf("%w: field %d has %d bytes, want 1", ErrInvalidWidth, f.ID, len(f.Value))
	}
	switch f.Value[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: field %d value %#x", ErrInvalidBool, f.ID, f.Value[0])
	}
}

func (f Field) Str() (string, error) {
	if err := MustType(f, TypeString); err != nil {
		return "", err
	}
	return string(f.Value), nil
}

// Bytes returns a copy of the value.
func (f Field) Bytes() ([]byte, error) {
	if err := MustType(f, TypeBytes); err != nil {
		return nil, err
	}
	buf := make([]byte, len(f.Value))
	copy(buf, f.Value)
	return buf, nil
}
