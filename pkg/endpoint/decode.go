package endpoint

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Decode converts a struct (honouring `mapstructure` tags) or a map into
// Values, so typed request payloads can be passed to SetBody. Keys are
// sorted since the intermediate map is unordered.
func Decode(input any) (*Values, error) {
	if input == nil {
		return nil, nil
	}
	if v, ok := input.(*Values); ok {
		return v, nil
	}
	var m map[string]any
	if err := mapstructure.Decode(input, &m); err != nil {
		return nil, fmt.Errorf("failed to decode %T into values: %w", input, err)
	}
	return FromMap(m), nil
}

// DecodeInto decodes the entries into out, typically a pointer to a struct.
func (v *Values) DecodeInto(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(v.Map())
}
