package vo2max

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInput(t *testing.T) {
	in, err := ParseInput(" 25 ", "Male", "10", "4")
	require.NoError(t, err)
	assert.Equal(t, Input{Age: 25, Sex: Male, Level: 10, Shuttles: 4}, in)

	in, err = ParseInput("14", "f", "1", "0")
	require.NoError(t, err)
	assert.Equal(t, Female, in.Sex)
}

func TestParseInput_Invalid(t *testing.T) {
	tests := []struct {
		name                      string
		age, sex, level, shuttles string
	}{
		{"non numeric age", "abc", "Male", "5", "1"},
		{"zero age", "0", "Male", "5", "1"},
		{"unknown sex", "20", "x", "5", "1"},
		{"level zero", "20", "Male", "0", "1"},
		{"level too high", "20", "Female", "22", "1"},
		{"non numeric level", "20", "Female", "five", "1"},
		{"negative shuttles", "20", "Female", "5", "-1"},
		{"too many shuttles", "20", "Female", "1", "8"},
		{"empty shuttles", "20", "Female", "1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInput(tt.age, tt.sex, tt.level, tt.shuttles)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestEstimate_LinearLevel(t *testing.T) {
	res, err := Estimate(ModeLinearLevel, Input{Age: 20, Sex: Male, Level: 10, Shuttles: 3})
	require.NoError(t, err)
	// 31.025 + 32.38 - 3.12 - 0.646
	assert.InDelta(t, 59.639, res.VO2max, 1e-9)
	assert.Equal(t, "Good", res.Rating)
	assert.Equal(t, ModeLinearLevel, res.Mode)

	res, err = Estimate(ModeLinearLevel, Input{Age: 20, Sex: Female, Level: 10})
	require.NoError(t, err)
	assert.InDelta(t, 60.285, res.VO2max, 1e-9)
	assert.Equal(t, "Excellent", res.Rating)
}

func TestEstimate_Leger1988(t *testing.T) {
	// adult, level 10 is 13.0 km/h: -24.4 + 78
	res, err := Estimate(ModeLeger1988, Input{Age: 30, Sex: Male, Level: 10})
	require.NoError(t, err)
	assert.InDelta(t, 53.6, res.VO2max, 1e-9)

	// child, level 5 is 10.5 km/h, age 12
	res, err = Estimate(ModeLeger1988, Input{Age: 12, Sex: Female, Level: 5})
	require.NoError(t, err)
	want := 31.025 + 3.238*10.5 - 3.248*12 + 0.1536*10.5*12
	assert.InDelta(t, want, res.VO2max, 1e-9)
	assert.Equal(t, Rating(want), res.Rating)
}

func TestEstimate_Errors(t *testing.T) {
	_, err := Estimate(ModeLinearLevel, Input{Age: 20, Level: 0})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Estimate(Mode("bogus"), Input{Age: 20, Level: 3})
	assert.Error(t, err)
}

func TestEstimate_IgnoresShuttles(t *testing.T) {
	for _, mode := range Modes {
		first, err := ParseInput("30", "Male", "7", "0")
		require.NoError(t, err)
		last, err := ParseInput("30", "Male", "7", "10")
		require.NoError(t, err)

		a, err := Estimate(mode, first)
		require.NoError(t, err)
		b, err := Estimate(mode, last)
		require.NoError(t, err)
		assert.Equal(t, a, b, mode.Label())
	}
}

func TestRating(t *testing.T) {
	assert.Equal(t, "Excellent", Rating(60.1))
	assert.Equal(t, "Good", Rating(60))
	assert.Equal(t, "Average", Rating(50))
	assert.Equal(t, "Below Average", Rating(40))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("LEGER1988")
	require.NoError(t, err)
	assert.Equal(t, ModeLeger1988, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeLinearLevel, m)

	_, err = ParseMode("cooper")
	assert.Error(t, err)
}
