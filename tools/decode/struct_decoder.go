package decode

import (
	"encoding/json"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"linkhub/tools/errs"
)

type Options struct {
	// WeaklyTypedInput lets "123" decode into an int and 1.0 into an int64.
	WeaklyTypedInput bool
	// TagName selects the struct tag, "json" by default.
	TagName string
	// ZeroFields replaces slices and maps instead of merging into them,
	// for overlaying a document onto defaults.
	ZeroFields bool
}

func DefaultOptions() Options {
	return Options{WeaklyTypedInput: true, TagName: "json"}
}

// Decode converts a loosely typed value (usually the map produced by
// json.Unmarshal into any) into T.
func Decode[T any](in any, opts ...Options) (*T, error) {
	var out T
	if err := Into(in, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Into decodes in into the pointer out.
func Into(in any, out any, opts ...Options) error {
	if in == nil {
		return errs.ErrArgs.WrapMsg("decode: input is nil")
	}
	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
		if cfg.TagName == "" {
			cfg.TagName = "json"
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          cfg.TagName,
		Result:           out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		ZeroFields:       cfg.ZeroFields,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
			mapstructure.StringToSliceHookFunc(","),
			floatToIntHook(),
			jsonRawStringToMapHook(),
		),
	})
	if err != nil {
		return errs.WrapMsg(err, "new decoder")
	}
	if err := dec.Decode(in); err != nil {
		return errs.ErrArgs.WrapMsg("decode: " + err.Error())
	}
	return nil
}

// floatToIntHook turns the float64 numbers encoding/json produces into ints.
func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return int(data.(float64)), nil
		case reflect.Int32:
			return int32(data.(float64)), nil
		case reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}

// jsonRawStringToMapHook accepts a JSON object encoded as a string where a
// map is expected.
func jsonRawStringToMapHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.Map {
			return data, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(data.(string)), &m); err == nil {
			return m, nil
		}
		return data, nil
	}
}
