package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"future-self-ai/internal/domain"
)

const (
	MinTargetAge     = 20
	MaxTargetAge     = 60
	DefaultTargetAge = 30

	promptQualitySuffix = ", highly detailed, sharp focus, studio lighting, masterpiece, best quality"
	fallbackTemplate    = "professional adult, office setting, age {age}, photorealistic"

	NegativePrompt = "deformed, blurry, bad anatomy, disfigured, poorly drawn face, " +
		"mutation, mutated, extra limb, ugly, poorly drawn hands, " +
		"missing limb, floating limbs, disconnected limbs, malformed hands, " +
		"out of focus, long neck, long body, unrealistic, doll, cartoon, " +
		"anime, 3d, cgi, render, sketch, painting, drawing"
)

var professionTemplates = map[string]string{
	"doctor":      "professional doctor, white coat, stethoscope, hospital, medical setting, age {age}, detailed face, photorealistic",
	"engineer":    "engineer, safety helmet, construction site, blueprint, technical, age {age}, professional",
	"teacher":     "teacher, classroom, books, glasses, kind expression, age {age}, educator",
	"astronaut":   "astronaut, space suit, NASA, space station, heroic, age {age}, detailed",
	"scientist":   "scientist, lab coat, laboratory, test tubes, intelligent, age {age}",
	"artist":      "artist, painter, studio, paintbrush, creative, age {age}, artistic",
	"pilot":       "pilot, airline uniform, cockpit, professional, confident, age {age}",
	"firefighter": "firefighter, fire suit, helmet, heroic, strong, age {age}",
	"chef":        "chef, kitchen uniform, restaurant, culinary, professional, age {age}",
	"athlete":     "athlete, sports uniform, stadium, athletic, fit, age {age}",
}

var titleCaser = cases.Title(language.English)

// Profession is the catalogue entry exposed to clients.
type Profession struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Professions returns the catalogue sorted by id.
func Professions() []Profession {
	out := make([]Profession, 0, len(professionTemplates))
	for id := range professionTemplates {
		out = append(out, Profession{ID: id, Name: titleCaser.String(id)})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// NormalizeProfession lower-cases and validates a profession against the catalogue.
func NormalizeProfession(p string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(p))
	if _, ok := professionTemplates[id]; !ok {
		ids := make([]string, 0, len(professionTemplates))
		for _, pr := range Professions() {
			ids = append(ids, pr.ID)
		}
		return "", fmt.Errorf("%w: invalid profession, choose from: %s", domain.ErrInvalidArgument, strings.Join(ids, ", "))
	}
	return id, nil
}

func ValidateTargetAge(age int) error {
	if age < MinTargetAge || age > MaxTargetAge {
		return fmt.Errorf("%w: age must be between %d and %d", domain.ErrInvalidArgument, MinTargetAge, MaxTargetAge)
	}
	return nil
}

// BuildPrompt renders the positive prompt for a profession and age. Unknown
// professions fall back to a generic office portrait.
func BuildPrompt(profession string, age int) string {
	tpl, ok := professionTemplates[strings.ToLower(strings.TrimSpace(profession))]
	if !ok {
		tpl = fallbackTemplate
	}
	return strings.ReplaceAll(tpl, "{age}", strconv.Itoa(age)) + promptQualitySuffix
}
