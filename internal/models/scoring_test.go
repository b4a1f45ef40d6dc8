package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreValue_ZeroValueIsUnset(t *testing.T) {
	var v ScoreValue
	assert.False(t, v.IsSet())
	assert.Equal(t, 0.0, v.Value())

	// An explicit zero score is a different thing than unset
	assert.True(t, ScoreOf(0).IsSet())
	assert.NotEqual(t, UnsetScore(), ScoreOf(0))
}

func TestScoreValue_UnmarshalAcceptsLegacyUnion(t *testing.T) {
	cases := []struct {
		name  string
		input string
		set   bool
		value float64
	}{
		{"number", `1.5`, true, 1.5},
		{"zero", `0`, true, 0},
		{"numeric string", `"0.5"`, true, 0.5},
		{"empty string means unset", `""`, false, 0},
		{"null means unset", `null`, false, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var v ScoreValue
			require.NoError(t, json.Unmarshal([]byte(tc.input), &v))
			assert.Equal(t, tc.set, v.IsSet())
			assert.Equal(t, tc.value, v.Value())
		})
	}
}

func TestScoreValue_UnmarshalRejectsNonNumericStrings(t *testing.T) {
	var v ScoreValue
	assert.Error(t, json.Unmarshal([]byte(`"high"`), &v))
	assert.Error(t, json.Unmarshal([]byte(`true`), &v))
}

func TestScoreValue_MarshalEmitsNullForUnset(t *testing.T) {
	payload, err := json.Marshal(TeacherScore{Part1: ScoreOf(1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"part1":1,"part2":null,"total":null}`, string(payload))
}

func TestScoreValue_RoundTrip(t *testing.T) {
	original := TeacherScore{Part1: ScoreOf(1), Part2: ScoreOf(0), Total: ScoreOf(1)}

	payload, err := json.Marshal(original)
	require.NoError(t, err)

	var restored TeacherScore
	require.NoError(t, json.Unmarshal(payload, &restored))
	assert.Equal(t, original, restored)
}

func TestQuestionDocument_ResponseLookup(t *testing.T) {
	doc := &QuestionDocument{
		StudentResponses: []StudentResponse{
			{ID: 10, Name: "Emma"},
			{ID: 11, Name: "Daan"},
		},
	}

	resp := doc.Response(11)
	require.NotNil(t, resp)
	assert.Equal(t, "Daan", resp.Name)

	assert.Nil(t, doc.Response(99))
}
