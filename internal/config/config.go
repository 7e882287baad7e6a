// Package config fills a flat options struct from a TOML file, the
// environment and command line flags, and validates run parameters.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/v4l2forward/internal/forward"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "V4L2FORWARD_"

// LoadConfig fills opts, a pointer to a struct, with precedence CLI flags >
// environment > TOML file > the defaults already in opts. Fields map to the
// file through `toml:"section.key"` tags and to the environment through
// `env:"KEY"` tags. A string field named Config holds the file path; a
// missing file is only an error when the path was given on the command line.
// Flags that cmd reports as Changed are never overwritten. Values that do not
// convert to their field, and an unreadable file, are reported as
// *forward.ConfigurationError.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: want pointer to struct, got %T", opts)
	}
	v = v.Elem()

	changed := changedFlags(cmd)
	fields := settableFields(v, changed)

	var errs []error

	if path := configPath(v); path != "" {
		doc, err := readTOML(path)
		switch {
		case errors.Is(err, os.ErrNotExist) && !changed["config"]:
		case err != nil:
			return &forward.ConfigurationError{Field: "config", Value: path, Reason: err.Error()}
		default:
			for _, f := range fields {
				if f.toml == "" {
					continue
				}
				if raw, ok := lookup(doc, f.toml); ok {
					if err := assign(f.value, raw); err != nil {
						errs = append(errs, &forward.ConfigurationError{
							Field:  f.toml,
							Value:  fmt.Sprint(raw),
							Reason: fmt.Sprintf("%v in %s", err, path),
						})
					}
				}
			}
		}
	}

	for _, f := range fields {
		if f.env == "" {
			continue
		}
		if raw, ok := os.LookupEnv(EnvPrefix + f.env); ok && raw != "" {
			if err := assignString(f.value, raw); err != nil {
				errs = append(errs, &forward.ConfigurationError{
					Field:  EnvPrefix + f.env,
					Value:  raw,
					Reason: err.Error(),
				})
			}
		}
	}

	return errors.Join(errs...)
}

type field struct {
	value reflect.Value
	toml  string
	env   string
}

// settableFields lists the fields of v that neither a flag nor the
// unexported-ness of the field protects.
func settableFields(v reflect.Value, changed map[string]bool) []field {
	t := v.Type()
	var out []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || changed[FlagName(sf.Name)] {
			continue
		}
		out = append(out, field{value: v.Field(i), toml: sf.Tag.Get("toml"), env: sf.Tag.Get("env")})
	}
	return out
}

func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})
	return changed
}

func configPath(v reflect.Value) string {
	f := v.FieldByName("Config")
	if !f.IsValid() || f.Kind() != reflect.String {
		return ""
	}
	return f.String()
}

func readTOML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
	}
	return doc, nil
}

// FlagName converts a field name to its kebab-case flag, keeping acronyms
// together: "TimeoutMs" -> "timeout-ms", "LoggingAPI" -> "logging-api".
func FlagName(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := !unicode.IsUpper(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// lookup walks a dotted path through nested tables.
func lookup(doc map[string]any, path string) (any, bool) {
	keys := strings.Split(path, ".")
	table := doc
	for _, key := range keys[:len(keys)-1] {
		next, ok := table[key].(map[string]any)
		if !ok {
			return nil, false
		}
		table = next
	}
	raw, ok := table[keys[len(keys)-1]]
	return raw, ok
}

// assign stores a decoded TOML value. go-toml decodes integers as int64 and
// arrays as []any.
func assign(dst reflect.Value, raw any) error {
	switch dst.Kind() {
	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", raw)
		}
		dst.SetString(s)
	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", raw)
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, ok := raw.(int64)
		if !ok {
			return fmt.Errorf("want integer, got %T", raw)
		}
		dst.SetInt(n)
	case reflect.Slice:
		items, ok := raw.([]any)
		if !ok || dst.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("want array of strings, got %T", raw)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("want array of strings, found %T", item)
			}
			out = append(out, s)
		}
		dst.Set(reflect.ValueOf(out))
	default:
		return fmt.Errorf("unsupported field kind %s", dst.Kind())
	}
	return nil
}

// assignString parses an environment value into dst. Slices are
// comma-separated.
func assignString(dst reflect.Value, raw string) error {
	switch dst.Kind() {
	case reflect.String:
		dst.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return errors.New("want true or false")
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return errors.New("want integer")
		}
		dst.SetInt(n)
	case reflect.Slice:
		if dst.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", dst.Type().Elem().Kind())
		}
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		dst.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field kind %s", dst.Kind())
	}
	return nil
}
