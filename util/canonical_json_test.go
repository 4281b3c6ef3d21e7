package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type outer struct {
	Zulu  string `json:"zulu"`
	Alpha inner  `json:"alpha"`
	Mike  int    `json:"mike"`
}

type inner struct {
	Yankee string `json:"yankee"`
	Bravo  string `json:"bravo"`
}

func TestCanonicalJSON(t *testing.T) {
	t.Run("field order does not change the serialization", func(t *testing.T) {
		structured, err := CanonicalJSON(outer{
			Zulu:  "z",
			Alpha: inner{Yankee: "y", Bravo: "b"},
			Mike:  3,
		})
		require.NoError(t, err)

		// same logical value expressed as a map with different key order
		mapped, err := CanonicalJSON(map[string]any{
			"mike": 3,
			"alpha": map[string]any{
				"bravo":  "b",
				"yankee": "y",
			},
			"zulu": "z",
		})
		require.NoError(t, err)
		require.Equal(t, string(structured), string(mapped))
	})

	t.Run("stable across repeated runs", func(t *testing.T) {
		value := map[string]any{"b": 1, "a": []any{"x", "y"}, "c": map[string]any{"k": "v"}}
		first, err := CanonicalJSON(value)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := CanonicalJSON(value)
			require.NoError(t, err)
			require.Equal(t, string(first), string(again))
		}
	})
}
