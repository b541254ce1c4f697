package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	leaves, err := Flatten("teachers/t1/activities/a1", map[string]interface{}{
		"title": "Animals",
		"questions": []interface{}{
			map[string]interface{}{"id": "q1", "options": []string{"a", "b"}},
		},
		"coverMedia": nil,
		"createdAt":  int64(1709287200000),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]json.RawMessage{
		"teachers/t1/activities/a1/title":                 json.RawMessage(`"Animals"`),
		"teachers/t1/activities/a1/questions/0/id":        json.RawMessage(`"q1"`),
		"teachers/t1/activities/a1/questions/0/options/0": json.RawMessage(`"a"`),
		"teachers/t1/activities/a1/questions/0/options/1": json.RawMessage(`"b"`),
		"teachers/t1/activities/a1/createdAt":             json.RawMessage(`1709287200000`),
	}, leaves)
}

func TestFlattenRejectsInvalidKeys(t *testing.T) {
	_, err := Flatten("root", map[string]string{"a.b": "x"})
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestAssemble(t *testing.T) {
	leaves := map[string]json.RawMessage{
		"t/a1/title":       json.RawMessage(`"Animals"`),
		"t/a1/questions/0": json.RawMessage(`"q1"`),
		"t/a1/questions/1": json.RawMessage(`"q2"`),
		"t/a1/answers/3":   json.RawMessage(`true`),
		"t/a10/title":      json.RawMessage(`"other"`),
	}

	tests := []struct {
		name string
		base string
		want string
	}{
		{name: "object", base: "t/a1", want: `{"answers":{"3":true},"questions":["q1","q2"],"title":"Animals"}`},
		{name: "leaf", base: "t/a1/title", want: `"Animals"`},
		{name: "array", base: "t/a1/questions", want: `["q1","q2"]`},
		{name: "sibling prefix is not a child", base: "t/a10", want: `{"title":"other"}`},
		{name: "missing", base: "t/a2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Assemble(tt.base, leaves)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, raw)
				return
			}
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestFlattenAssembleKeepsStructs(t *testing.T) {
	type option struct {
		ID        string `json:"id"`
		IsCorrect bool   `json:"isCorrect"`
	}
	in := struct {
		Title   string   `json:"title"`
		Options []option `json:"options"`
	}{Title: "Q", Options: []option{{ID: "o1"}, {ID: "o2", IsCorrect: true}}}

	leaves, err := Flatten("q", in)
	require.NoError(t, err)
	raw, err := Assemble("q", leaves)
	require.NoError(t, err)

	var out struct {
		Title   string   `json:"title"`
		Options []option `json:"options"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.Title, out.Title)
	assert.Equal(t, in.Options, out.Options)
}

func TestSnapshotChildren(t *testing.T) {
	s := Snapshot{Path: "p", Value: json.RawMessage(`["x","y"]`)}
	assert.Equal(t, map[string]json.RawMessage{"0": json.RawMessage(`"x"`), "1": json.RawMessage(`"y"`)}, s.Children())

	assert.Empty(t, Snapshot{Path: "p"}.Children())
	assert.ErrorIs(t, Snapshot{Path: "p"}.Decode(&struct{}{}), ErrNotFound)
}
