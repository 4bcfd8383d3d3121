package codec

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/danmuck/packetio/internal/protocol/tlv"
)

var (
	ErrMissingField   = errors.New("codec: missing required field")
	ErrDuplicateField = errors.New("codec: duplicate field id")
)

// FieldError reports a problem with one tagged struct field.
type FieldError struct {
	Type    reflect.Type
	FieldID uint16
	Err     error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("codec: %s field %d: %v", e.Type, e.FieldID, e.Err)
}

func (e FieldError) Unwrap() error {
	return e.Err
}

type tlvCodec struct{}

// TLV encodes structs whose fields carry `tlv:"<id>[,required]"` tags.
// Supported field kinds are uint8..uint64, bool, string and []byte.
func TLV() Codec {
	return tlvCodec{}
}

func (tlvCodec) Name() string {
	return "tlv"
}

type tlvField struct {
	index    int
	id       uint16
	typeID   uint8
	required bool
}

type tlvLayout struct {
	fields []tlvField
	byID   map[uint16]tlvField
}

var tlvLayouts sync.Map // reflect.Type -> *tlvLayout

func (tlvCodec) Marshal(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: nil %T", ErrUnsupportedType, v)
		}
		rv = rv.Elem()
	}
	layout, err := layoutFor(rv.Type())
	if err != nil {
		return nil, err
	}
	fields := make([]tlv.Field, 0, len(layout.fields))
	for _, f := range layout.fields {
		field, err := encodeTLVValue(f, rv.Field(f.index))
		if err != nil {
			return nil, FieldError{Type: rv.Type(), FieldID: f.id, Err: err}
		}
		fields = append(fields, field)
	}
	return tlv.EncodeFields(fields), nil
}

func (tlvCodec) Unmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: decode target %T is not a non-nil pointer", ErrUnsupportedType, v)
	}
	rv = rv.Elem()
	layout, err := layoutFor(rv.Type())
	if err != nil {
		return err
	}
	fields, err := tlv.DecodeFields(data)
	if err != nil {
		return err
	}

	seen := make(map[uint16]struct{}, len(fields))
	for _, field := range fields {
		if _, dup := seen[field.ID]; dup {
			return FieldError{Type: rv.Type(), FieldID: field.ID, Err: ErrDuplicateField}
		}
		seen[field.ID] = struct{}{}
		def, ok := layout.byID[field.ID]
		if !ok {
			continue
		}
		if err := decodeTLVValue(def, field, rv.Field(def.index)); err != nil {
			return FieldError{Type: rv.Type(), FieldID: field.ID, Err: err}
		}
	}
	for _, def := range layout.fields {
		if _, ok := seen[def.id]; def.required && !ok {
			return FieldError{Type: rv.Type(), FieldID: def.id, Err: ErrMissingField}
		}
	}
	return nil
}

func layoutFor(t reflect.Type) (*tlvLayout, error) {
	if cached, ok := tlvLayouts.Load(t); ok {
		return cached.(*tlvLayout), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: tlv needs a struct, got %s", ErrUnsupportedType, t)
	}
	layout := &tlvLayout{byID: make(map[uint16]tlvField)}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup("tlv")
		if !ok || tag == "-" {
			continue
		}
		if !sf.IsExported() {
			return nil, fmt.Errorf("%w: %s.%s is tagged but unexported", ErrUnsupportedType, t, sf.Name)
		}
		name, opts, _ := strings.Cut(tag, ",")
		id, err := strconv.ParseUint(name, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s has bad tlv id %q", ErrUnsupportedType, t, sf.Name, name)
		}
		typeID, err := tlvTypeOf(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t, sf.Name, err)
		}
		f := tlvField{index: i, id: uint16(id), typeID: typeID, required: opts == "required"}
		if _, dup := layout.byID[f.id]; dup {
			return nil, fmt.Errorf("%w: %s reuses id %d", ErrDuplicateField, t, f.id)
		}
		layout.byID[f.id] = f
		layout.fields = append(layout.fields, f)
	}
	sort.Slice(layout.fields, func(i, j int) bool {
		return layout.fields[i].id < layout.fields[j].id
	})
	actual, _ := tlvLayouts.LoadOrStore(t, layout)
	return actual.(*tlvLayout), nil
}

func tlvTypeOf(t reflect.Type) (uint8, error) {
	switch t.Kind() {
	case reflect.Uint8:
		return tlv.TypeU8, nil
	case reflect.Uint16:
		return tlv.TypeU16, nil
	case reflect.Uint32:
		return tlv.TypeU32, nil
	case reflect.Uint64:
		return tlv.TypeU64, nil
	case reflect.Bool:
		return tlv.TypeBool, nil
	case reflect.String:
		return tlv.TypeString, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return tlv.TypeBytes, nil
		}
	}
	return 0, fmt.Errorf("%w: tlv cannot carry %s", ErrUnsupportedType, t)
}

func encodeTLVValue(f tlvField, v reflect.Value) (tlv.Field, error) {
	switch f.typeID {
	case tlv.TypeU8:
		return tlv.NewU8(f.id, uint8(v.Uint())), nil
	case tlv.TypeU16:
		return tlv.NewU16(f.id, uint16(v.Uint())), nil
	case tlv.TypeU32:
		return tlv.NewU32(f.id, uint32(v.Uint())), nil
	case tlv.TypeU64:
		return tlv.NewU64(f.id, v.Uint()), nil
	case tlv.TypeBool:
		return tlv.NewBool(f.id, v.Bool()), nil
	case tlv.TypeString:
		if uint64(v.Len()) > math.MaxUint32 {
			return tlv.Field{}, tlv.ErrValueTooLarge
		}
		return tlv.NewString(f.id, v.String()), nil
	default:
		if uint64(v.Len()) > math.MaxUint32 {
			return tlv.Field{}, tlv.ErrValueTooLarge
		}
		return tlv.NewBytes(f.id, v.Bytes()), nil
	}
}

func decodeTLVValue(def tlvField, field tlv.Field, dst reflect.Value) error {
	if err := tlv.MustType(field, def.typeID); err != nil {
		return err
	}
	switch def.typeID {
	case tlv.TypeU8, tlv.TypeU16, tlv.TypeU32, tlv.TypeU64:
		n, err := field.Uint()
		if err != nil {
			return err
		}
		dst.SetUint(n)
	case tlv.TypeBool:
		b, err := field.Bool()
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case tlv.TypeString:
		dst.SetString(string(field.Value))
	default:
		// DecodeFields already handed us a private copy.
		dst.SetBytes(field.Value)
	}
	return nil
}
