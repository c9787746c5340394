package pocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Pocket stringifies most scalar fields: booleans are "0"/"1", counters and
// timestamps are decimal strings, enums are the string of their ordinal.
// Every such conversion lives in this file; the model exposes native types.

// wireBool is a bool carried as the literal string "0" or "1".
type wireBool bool

func (b wireBool) MarshalJSON() ([]byte, error) {
	if b {
		return []byte(`"1"`), nil
	}
	return []byte(`"0"`), nil
}

func (b *wireBool) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid boolean encoding %s: %w", data, err)
	}
	switch s {
	case "0":
		*b = false
	case "1":
		*b = true
	default:
		return fmt.Errorf("invalid boolean encoding %q: want \"0\" or \"1\"", s)
	}
	return nil
}

// wireUint is an unsigned integer carried as a decimal string.
type wireUint uint64

func (u wireUint) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(u), 10))), nil
}

func (u *wireUint) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid integer encoding %s: %w", data, err)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer encoding %q: %w", s, err)
	}
	*u = wireUint(n)
	return nil
}

// looseInt is a response metadata number that Pocket may send as a JSON
// number or a numeric string. Anything else decodes as zero.
type looseInt int64

func (n *looseInt) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(bytes.TrimSpace(data), `"`)
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = looseInt(v)
	return nil
}

// parseOrdinal accepts only the canonical spelling of an ordinal, so "01"
// is rejected like any other unknown value.
func parseOrdinal(kind string, text []byte, max uint8) (uint8, error) {
	n, err := strconv.ParseUint(string(text), 10, 8)
	if err != nil || uint8(n) > max || !bytes.Equal(text, formatOrdinal(uint8(n))) {
		return 0, fmt.Errorf("invalid %s %q", kind, text)
	}
	return uint8(n), nil
}

func formatOrdinal(n uint8) []byte {
	return []byte(strconv.FormatUint(uint64(n), 10))
}

func (s Status) MarshalText() ([]byte, error) {
	if s > ShouldBeDeleted {
		return nil, fmt.Errorf("invalid status %d", s)
	}
	return formatOrdinal(uint8(s)), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	n, err := parseOrdinal("status", text, uint8(ShouldBeDeleted))
	if err != nil {
		return err
	}
	*s = Status(n)
	return nil
}

func (f FavoriteStatus) MarshalText() ([]byte, error) {
	if f > Favorited {
		return nil, fmt.Errorf("invalid favorite status %d", f)
	}
	return formatOrdinal(uint8(f)), nil
}

func (f *FavoriteStatus) UnmarshalText(text []byte) error {
	n, err := parseOrdinal("favorite status", text, uint8(Favorited))
	if err != nil {
		return err
	}
	*f = FavoriteStatus(n)
	return nil
}

func (h HasImage) MarshalText() ([]byte, error) {
	if h > ImageIsSelf {
		return nil, fmt.Errorf("invalid has_image %d", h)
	}
	return formatOrdinal(uint8(h)), nil
}

func (h *HasImage) UnmarshalText(text []byte) error {
	n, err := parseOrdinal("has_image", text, uint8(ImageIsSelf))
	if err != nil {
		return err
	}
	*h = HasImage(n)
	return nil
}

func (h HasVideo) MarshalText() ([]byte, error) {
	if h > VideoIsSelf {
		return nil, fmt.Errorf("invalid has_video %d", h)
	}
	return formatOrdinal(uint8(h)), nil
}

func (h *HasVideo) UnmarshalText(text []byte) error {
	n, err := parseOrdinal("has_video", text, uint8(VideoIsSelf))
	if err != nil {
		return err
	}
	*h = HasVideo(n)
	return nil
}

// missingFieldError reports a required field that is absent or null.
type missingFieldError struct {
	name string
}

func (e *missingFieldError) Error() string {
	return fmt.Sprintf("missing field %q", e.name)
}

// requireFields fails when any of names is missing from obj or is JSON null.
func requireFields(obj map[string]json.RawMessage, names ...string) error {
	for _, name := range names {
		raw, ok := obj[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return &missingFieldError{name: name}
		}
	}
	return nil
}

// decodeStrict decodes data into obj for presence checks and then into v.
func decodeStrict(data []byte, v any, required ...string) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj == nil {
		return fmt.Errorf("expected object, got null")
	}
	if err := requireFields(obj, required...); err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// wireMap is an id-keyed collection. Pocket sends an empty JSON array instead
// of an empty object when the collection has no members.
type wireMap[V any] map[string]V

func (m *wireMap[V]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("[]")) {
		*m = wireMap[V]{}
		return nil
	}
	var raw map[string]V
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = raw
	return nil
}
