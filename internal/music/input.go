package music

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jackzampolin/songbook/internal/prompts"
)

// DefaultAgeGroup is assumed when a song input names no age group.
const DefaultAgeGroup = "5-10"

var ageGroupPattern = regexp.MustCompile(`^\d{1,2}(-\d{1,2}|\+)?$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("agegroup", func(fl validator.FieldLevel) bool {
		return ageGroupPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// SongInput is the song metadata a prompt is built from. Every field is
// optional.
type SongInput struct {
	Theme          string `json:"theme,omitempty" yaml:"theme,omitempty" validate:"max=500"`
	Mood           string `json:"mood,omitempty" yaml:"mood,omitempty" validate:"max=50"`
	Energy         string `json:"energy,omitempty" yaml:"energy,omitempty" validate:"max=50"`
	Tempo          string `json:"tempo,omitempty" yaml:"tempo,omitempty" validate:"max=50"`
	Lyrics         string `json:"lyrics,omitempty" yaml:"lyrics,omitempty" validate:"max=10000"`
	BibleReference string `json:"bibleReference,omitempty" yaml:"bibleReference,omitempty" validate:"max=100"`
	AgeGroup       string `json:"ageGroup,omitempty" yaml:"ageGroup,omitempty" validate:"omitempty,agegroup"`
	Instrumental   bool   `json:"instrumental" yaml:"instrumental"`
}

// Validate checks field lengths and the age group format.
func (in SongInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "agegroup":
			msgs = append(msgs, fmt.Sprintf("%s must look like 5-10, 3+ or 7", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

// Vars maps the input onto render variables. Values are cleaned the way the
// renderer cleans its output, so lyrics lengths measured here match the
// rendered prompt. Blank strings are left out so template defaults and
// negative blocks apply.
func (in SongInput) Vars() prompts.Vars {
	vars := prompts.Vars{"instrumental": in.Instrumental}
	set := func(key, value string) {
		if value = prompts.Clean(value); value != "" {
			vars[key] = value
		}
	}
	set("theme", in.Theme)
	set("mood", in.Mood)
	set("energy", in.Energy)
	set("tempo", in.Tempo)
	set("lyrics", in.Lyrics)
	set("bibleReference", in.BibleReference)
	set("ageGroup", in.AgeGroup)
	return vars
}
