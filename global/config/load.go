package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"linkhub/tools/decode"
	"linkhub/tools/errs"
)

const EnvPrefix = "LINKHUB"

var overlay = decode.Options{WeaklyTypedInput: true, TagName: "json", ZeroFields: true}

// Load builds the configuration from defaults, the YAML file at path (may be
// empty) and LINKHUB_* variables read through lookup.
func Load(path string, lookup func(string) (string, bool)) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.ErrArgs.WrapMsg("read config: "+err.Error(), "path", path)
		}
		if err := MergeYAML(&cfg, b); err != nil {
			return nil, err
		}
	}
	if lookup != nil {
		if err := MergeEnv(&cfg, lookup); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// MergeYAML overlays the keys present in doc onto cfg.
func MergeYAML(cfg *AppConfig, doc []byte) error {
	var m map[string]any
	if err := yaml.Unmarshal(doc, &m); err != nil {
		return errs.ErrArgs.WrapMsg("parse yaml: " + err.Error())
	}
	if len(m) == 0 {
		return nil
	}
	return decode.Into(m, cfg, overlay)
}

// MergeEnv overlays variables named after the json path of each field,
// e.g. LINKHUB_SECURITY_JWT_SECRET or LINKHUB_NATS_SERVERS=a,b.
func MergeEnv(cfg *AppConfig, lookup func(string) (string, bool)) error {
	m := envTree(EnvPrefix, reflect.TypeOf(*cfg), lookup)
	if len(m) == 0 {
		return nil
	}
	return decode.Into(m, cfg, overlay)
}

var durationType = reflect.TypeOf(time.Duration(0))

func envTree(prefix string, t reflect.Type, lookup func(string) (string, bool)) map[string]any {
	out := make(map[string]any)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" || !f.IsExported() {
			continue
		}
		key := prefix + "_" + strings.ToUpper(name)
		if f.Type.Kind() == reflect.Struct && f.Type != durationType {
			if sub := envTree(key, f.Type, lookup); len(sub) > 0 {
				out[name] = sub
			}
			continue
		}
		if v, ok := lookup(key); ok {
			out[name] = v
		}
	}
	return out
}
