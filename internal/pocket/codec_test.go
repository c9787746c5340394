package pocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWireBool(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{`"0"`, false, false},
		{`"1"`, true, false},
		{`"2"`, false, true},
		{`"true"`, false, true},
		{`1`, false, true},
		{`true`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var b wireBool
			err := json.Unmarshal([]byte(tt.in), &b)
			if tt.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid boolean encoding")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, bool(b))
		})
	}

	out, err := json.Marshal(wireBool(true))
	require.NoError(t, err)
	require.Equal(t, `"1"`, string(out))
}

func TestWireUint(t *testing.T) {
	var u wireUint
	require.NoError(t, json.Unmarshal([]byte(`"1473631286"`), &u))
	require.EqualValues(t, 1473631286, u)

	require.Error(t, json.Unmarshal([]byte(`"12a"`), &u))
	require.Error(t, json.Unmarshal([]byte(`"-1"`), &u))
	require.Error(t, json.Unmarshal([]byte(`12`), &u))

	out, err := json.Marshal(wireUint(3197))
	require.NoError(t, err)
	require.Equal(t, `"3197"`, string(out))
}

func TestEnumOrdinals(t *testing.T) {
	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"2"`), &s))
	require.Equal(t, ShouldBeDeleted, s)
	require.Error(t, json.Unmarshal([]byte(`"3"`), &s))
	require.Error(t, json.Unmarshal([]byte(`"read"`), &s))

	var f FavoriteStatus
	require.NoError(t, json.Unmarshal([]byte(`"1"`), &f))
	require.Equal(t, Favorited, f)
	require.Error(t, json.Unmarshal([]byte(`"2"`), &f))

	var img HasImage
	require.NoError(t, json.Unmarshal([]byte(`"2"`), &img))
	require.Equal(t, ImageIsSelf, img)

	var vid HasVideo
	require.Error(t, json.Unmarshal([]byte(`"9"`), &vid))

	for _, text := range []string{`"01"`, `"001"`, `"+1"`, `" 1"`, `""`} {
		require.Error(t, json.Unmarshal([]byte(text), &s), text)
		require.Error(t, json.Unmarshal([]byte(text), &f), text)
	}

	out, err := json.Marshal(Read)
	require.NoError(t, err)
	require.Equal(t, `"1"`, string(out))

	_, err = json.Marshal(Status(7))
	require.Error(t, err)
}

func TestWireMapAcceptsEmptyArray(t *testing.T) {
	var m wireMap[Tag]
	require.NoError(t, json.Unmarshal([]byte(`[]`), &m))
	require.NotNil(t, m)
	require.Empty(t, m)

	require.NoError(t, json.Unmarshal([]byte(`{"go": {"item_id": "1", "tag": "go"}}`), &m))
	require.Equal(t, "go", m["go"].Tag)

	require.Error(t, json.Unmarshal([]byte(`["go"]`), &m))
}

func TestDecodeStrict(t *testing.T) {
	var v struct {
		A string `json:"a"`
	}
	require.NoError(t, decodeStrict([]byte(`{"a": "x"}`), &v, "a"))

	err := decodeStrict([]byte(`{"a": null}`), &v, "a")
	var missing *missingFieldError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "a", missing.name)

	require.ErrorAs(t, decodeStrict([]byte(`{}`), &v, "a"), &missing)
	require.Error(t, decodeStrict([]byte(`null`), &v, "a"))
}
