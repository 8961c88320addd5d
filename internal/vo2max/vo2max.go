// Package vo2max estimates aerobic capacity from a shuttle run result.
//
// Two estimators are offered and always labelled, since they disagree:
// ModeLinearLevel is a linear fit on the level reached, age and sex;
// ModeLeger1988 uses the running speed of the level reached with the
// Léger et al. (1988) equations for children (age < 18) and adults.
package vo2max

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/protocol"
)

// InvalidInputMessage is what the calculator shows for any ErrInvalidInput.
const InvalidInputMessage = "Invalid input, please check values."

var ErrInvalidInput = errors.New("invalid input")

type Mode string

const (
	ModeLinearLevel Mode = "linear"
	ModeLeger1988   Mode = "leger1988"
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeLinearLevel, ModeLeger1988}

func (m Mode) Label() string {
	switch m {
	case ModeLinearLevel:
		return "Linear (level, age, sex)"
	case ModeLeger1988:
		return "Léger 1988 (speed, age)"
	default:
		return string(m)
	}
}

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeLinearLevel, ModeLeger1988:
		return m, nil
	case "":
		return ModeLinearLevel, nil
	default:
		return "", fmt.Errorf("unknown vo2max mode %q", s)
	}
}

type Sex int

const (
	Female Sex = iota
	Male
)

func (s Sex) String() string {
	if s == Male {
		return "Male"
	}
	return "Female"
}

// Input is a validated calculator input.
type Input struct {
	Age      int
	Sex      Sex
	Level    int
	Shuttles int // checked against the level, not used by any formula
}

// ParseInput validates the calculator's text fields.
func ParseInput(age, sex, level, shuttles string) (Input, error) {
	var in Input
	var err error

	if in.Age, err = strconv.Atoi(strings.TrimSpace(age)); err != nil || in.Age <= 0 {
		return Input{}, fmt.Errorf("%w: age %q", ErrInvalidInput, age)
	}

	switch strings.ToLower(strings.TrimSpace(sex)) {
	case "male", "m":
		in.Sex = Male
	case "female", "f":
		in.Sex = Female
	default:
		return Input{}, fmt.Errorf("%w: sex %q", ErrInvalidInput, sex)
	}

	if in.Level, err = strconv.Atoi(strings.TrimSpace(level)); err != nil {
		return Input{}, fmt.Errorf("%w: level %q", ErrInvalidInput, level)
	}
	l, ok := protocol.Lookup(in.Level)
	if !ok {
		return Input{}, fmt.Errorf("%w: level %d outside 1..%d", ErrInvalidInput, in.Level, protocol.MaxLevel())
	}

	if in.Shuttles, err = strconv.Atoi(strings.TrimSpace(shuttles)); err != nil {
		return Input{}, fmt.Errorf("%w: shuttles %q", ErrInvalidInput, shuttles)
	}
	if in.Shuttles < 0 || in.Shuttles > l.Shuttles {
		return Input{}, fmt.Errorf("%w: shuttles %d outside 0..%d for level %d", ErrInvalidInput, in.Shuttles, l.Shuttles, in.Level)
	}
	return in, nil
}

// Result is an estimate with its rating.
type Result struct {
	Mode   Mode    `json:"mode"`
	VO2max float64 `json:"vo2max"`
	Rating string  `json:"rating"`
}

// Estimate computes VO2max in ml/kg/min.
func Estimate(mode Mode, in Input) (Result, error) {
	l, ok := protocol.Lookup(in.Level)
	if !ok || in.Age <= 0 {
		return Result{}, fmt.Errorf("%w: level %d age %d", ErrInvalidInput, in.Level, in.Age)
	}

	var v float64
	switch mode {
	case ModeLinearLevel:
		sexFactor := 0.0
		if in.Sex == Male {
			sexFactor = 1
		}
		v = 31.025 + 3.238*float64(in.Level) - 0.156*float64(in.Age) - 0.646*sexFactor
	case ModeLeger1988:
		s, a := l.SpeedKmh, float64(in.Age)
		if in.Age < 18 {
			v = 31.025 + 3.238*s - 3.248*a + 0.1536*s*a
		} else {
			v = -24.4 + 6.0*s
		}
	default:
		return Result{}, fmt.Errorf("unknown vo2max mode %q", mode)
	}
	return Result{Mode: mode, VO2max: v, Rating: Rating(v)}, nil
}

func Rating(v float64) string {
	switch {
	case v > 60:
		return "Excellent"
	case v > 50:
		return "Good"
	case v > 40:
		return "Average"
	default:
		return "Below Average"
	}
}
