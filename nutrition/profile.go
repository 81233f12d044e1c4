// Package nutrition computes personalized daily nutrient targets from a user's
// body profile and classifies observed nutrient amounts against them.
//
// Every function in this package is pure: no I/O, no shared mutable state.
// Callers fetch profiles and persist evaluations themselves.
package nutrition

import (
	"errors"
	"strings"
)

// Gender selects the BMR constant and the DRI column. Only "male" is special;
// any other value is treated as female.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// WeightUnit is the unit a profile's Weight is expressed in.
type WeightUnit string

const (
	WeightKG  WeightUnit = "kg"
	WeightLBS WeightUnit = "lbs"
)

// HeightUnit is the unit a profile's Height is expressed in.
type HeightUnit string

const (
	HeightCM HeightUnit = "cm"
	HeightIN HeightUnit = "in"
)

const (
	kgPerLB = 0.453592
	cmPerIN = 2.54
)

// UserProfile is the body profile targets are personalized to. Weight and
// Height are in the units named by WeightUnit/HeightUnit; empty or unknown
// units mean lbs and inches. Goal is free text matched case-insensitively.
type UserProfile struct {
	Age              int           `json:"age"`
	Gender           Gender        `json:"gender"`
	Weight           float64       `json:"weight"`
	WeightUnit       WeightUnit    `json:"weight_unit"`
	Height           float64       `json:"height"`
	HeightUnit       HeightUnit    `json:"height_unit"`
	ActivityLevel    ActivityLevel `json:"activity_level"`
	Goal             string        `json:"goal,omitempty"`
	HealthConditions []string      `json:"health_conditions,omitempty"`
}

// DefaultProfile fills in whatever a stored profile is missing. It is applied
// once, at the boundary, by WithDefaults.
var DefaultProfile = UserProfile{
	Age:           30,
	Gender:        GenderFemale,
	Weight:        65,
	WeightUnit:    WeightKG,
	Height:        165,
	HeightUnit:    HeightCM,
	ActivityLevel: ActivityModerate,
	Goal:          "general health",
}

// WithDefaults returns a copy of p where every zero-valued field is taken from
// DefaultProfile. A weight or height borrowed from the default also borrows
// its unit so the value keeps its meaning.
func (p UserProfile) WithDefaults() UserProfile {
	d := DefaultProfile
	if p.Age <= 0 {
		p.Age = d.Age
	}
	if p.Gender == "" {
		p.Gender = d.Gender
	}
	if p.Weight <= 0 {
		p.Weight, p.WeightUnit = d.Weight, d.WeightUnit
	}
	if p.Height <= 0 {
		p.Height, p.HeightUnit = d.Height, d.HeightUnit
	}
	if p.ActivityLevel == "" {
		p.ActivityLevel = d.ActivityLevel
	}
	if strings.TrimSpace(p.Goal) == "" {
		p.Goal = d.Goal
	}
	return p
}

// Metrics is a profile's weight and height in metric base units.
type Metrics struct {
	WeightKG float64 `json:"weight_kg"`
	HeightCM float64 `json:"height_cm"`
}

// NormalizeProfile converts p's weight to kilograms and height to centimeters.
// Zero or negative values pass through unchanged in sign.
func NormalizeProfile(p UserProfile) Metrics {
	m := Metrics{WeightKG: p.Weight, HeightCM: p.Height}
	if WeightUnit(strings.ToLower(string(p.WeightUnit))) != WeightKG {
		m.WeightKG = p.Weight * kgPerLB
	}
	if HeightUnit(strings.ToLower(string(p.HeightUnit))) != HeightCM {
		m.HeightCM = p.Height * cmPerIN
	}
	return m
}

func (p UserProfile) isMale() bool {
	return Gender(strings.ToLower(strings.TrimSpace(string(p.Gender)))) == GenderMale
}

// goalMentions reports whether the goal contains any of the given phrases.
func (p UserProfile) goalMentions(phrases ...string) bool {
	goal := strings.ToLower(p.Goal)
	if goal == "" {
		return false
	}
	for _, phrase := range phrases {
		if strings.Contains(goal, phrase) {
			return true
		}
	}
	return false
}

var errImplausibleBody = errors.New("height/weight out of plausible range")

// ComputeBMI returns the body mass index for p. Heights outside 50–250 cm or
// weights outside 10–400 kg are rejected rather than producing a garbage value.
func ComputeBMI(p UserProfile) (float64, error) {
	m := NormalizeProfile(p)
	if m.HeightCM <= 0 || m.WeightKG <= 0 {
		return 0, errors.New("height and weight must be positive")
	}
	if m.HeightCM < 50 || m.HeightCM > 250 || m.WeightKG < 10 || m.WeightKG > 400 {
		return 0, errImplausibleBody
	}
	h := m.HeightCM / 100
	return m.WeightKG / (h * h), nil
}

// BMICategory names the WHO band a BMI value falls into.
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "Underweight"
	case bmi < 25.0:
		return "Normal weight"
	case bmi < 30.0:
		return "Overweight"
	case bmi < 35.0:
		return "Obesity class I"
	case bmi < 40.0:
		return "Obesity class II"
	default:
		return "Obesity class III"
	}
}
