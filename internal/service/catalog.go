package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"taskhub/internal/models"
)

const maxNameLength = 255

// validationErrors accumulates field messages in the order rules ran.
type validationErrors []string

func (v *validationErrors) add(format string, args ...interface{}) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

func (v validationErrors) err() error {
	if e := models.NewValidationErrors(v...); e != nil {
		return e
	}
	return nil
}

func (v *validationErrors) name(value string) {
	switch {
	case strings.TrimSpace(value) == "":
		v.add("Name can't be blank")
	case utf8.RuneCountInString(value) > maxNameLength:
		v.add("Name is too long (maximum is %d characters)", maxNameLength)
	}
}

func (v *validationErrors) nonNegative(field string, value int) {
	if value < 0 {
		v.add("%s must be greater than or equal to 0", field)
	}
}

func (v *validationErrors) dateRange(start, end *models.Date) {
	if start != nil && end != nil && end.Before(start.Time) {
		v.add("Ending at must be on or after starting at")
	}
}

// setString, setInt and setBool copy a supplied field; nil means unchanged.
func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// setDate copies a supplied date. An empty string on the wire decodes to the
// zero Date, which clears the column.
func setDate(dst **models.Date, v *models.Date) {
	if v == nil {
		return
	}
	if v.IsZero() {
		*dst = nil
		return
	}
	d := *v
	*dst = &d
}

// requireAccess turns a failed visibility or membership check into FORBIDDEN.
func requireAccess(ctx context.Context, public bool, linked func(context.Context) (bool, error), message string) error {
	if public {
		return nil
	}
	return requireLinked(ctx, linked, message)
}

func requireLinked(ctx context.Context, linked func(context.Context) (bool, error), message string) error {
	ok, err := linked(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError(message)
	}
	return nil
}
