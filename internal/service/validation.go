package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"network/internal/models"
)

var (
	// ErrEmptyText rejects blank post and comment text before any request.
	ErrEmptyText = errors.New("text must not be empty")

	ErrValidation = errors.New("validation failed")
)

var htmlTag = regexp.MustCompile(`<("[^"]*"|'[^']*'|[^'">])*>`)

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields models.FieldErrors
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type textInput struct {
	Text string `json:"text" validate:"min=3,max=200,nohtml"`
}

type profileInput struct {
	Username string `json:"username" validate:"required,min=3,max=20"`
	About    string `json:"about" validate:"max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("nohtml", func(fl validator.FieldLevel) bool {
		return !htmlTag.MatchString(fl.Field().String())
	})
	return v
}

// fieldErrors converts a validator failure into per-field messages worded
// like the server's.
func fieldErrors(err error) models.FieldErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.FieldErrors{"": err.Error()}
	}

	out := make(models.FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "min":
		return fmt.Sprintf("Must be at least %s characters long.", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters long.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "nohtml":
		return "HTML is not allowed."
	default:
		return fmt.Sprintf("Failed %s validation.", fe.Tag())
	}
}

// checkText trims text and validates it as post or comment body.
func (v *validation) checkText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if err := v.validate.Struct(textInput{Text: text}); err != nil {
		return "", &ValidationError{Fields: fieldErrors(err)}
	}
	return text, nil
}

func (v *validation) checkProfile(form models.ProfileUpdate) (models.ProfileUpdate, models.FieldErrors) {
	form = models.ProfileUpdate{
		Username: strings.TrimSpace(form.Username),
		About:    strings.TrimSpace(form.About),
		Email:    strings.TrimSpace(form.Email),
	}
	if err := v.validate.Struct(profileInput(form)); err != nil {
		return form, fieldErrors(err)
	}
	return form, nil
}

type validation struct {
	validate *validator.Validate
}
