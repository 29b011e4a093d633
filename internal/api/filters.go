package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ignite/sendgrid-analytics/internal/domain"
)

// filterRequest is the body of PUT /api/sessions/{id}/filters. Omitted or
// null lists disable that filter; an empty include_subjects list selects
// nothing.
type filterRequest struct {
	DateRange         *dateRangeRequest `json:"date_range" validate:"omitempty"`
	IncludeSubjects   []string          `json:"include_subjects" validate:"omitempty,max=5000,dive,max=998"`
	ExcludeRecipients []string          `json:"exclude_recipients" validate:"omitempty,max=50000,dive,required,max=320"`
}

type dateRangeRequest struct {
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end" validate:"required,datetime=2006-01-02"`
}

// fieldError is one rejected field of a request body.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var errStartAfterEnd = errors.New("date_range.start must not be after date_range.end")

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationErrors flattens validator output into field messages.
func validationErrors(err error) []fieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []fieldError{{Message: err.Error()}}
	}
	out := make([]fieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, fieldError{
			Field:   strings.TrimPrefix(fe.Namespace(), "filterRequest."),
			Message: describeRule(fe),
		})
	}
	return out
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return fmt.Sprintf("must be a date formatted %s", fe.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// toFilter converts a validated request to a domain filter, keeping the
// difference between an absent list and an empty one.
func (req filterRequest) toFilter() (domain.Filter, error) {
	f := domain.Filter{
		IncludeSubjects:   req.IncludeSubjects,
		ExcludeRecipients: req.ExcludeRecipients,
	}
	if f.ExcludeRecipients != nil {
		recips := make([]string, len(f.ExcludeRecipients))
		for i, r := range f.ExcludeRecipients {
			recips[i] = strings.TrimSpace(r)
		}
		f.ExcludeRecipients = recips
	}
	if req.DateRange == nil {
		return f, nil
	}

	start, err := domain.ParseDay(req.DateRange.Start)
	if err != nil {
		return domain.Filter{}, err
	}
	end, err := domain.ParseDay(req.DateRange.End)
	if err != nil {
		return domain.Filter{}, err
	}
	if start.After(end) {
		return domain.Filter{}, errStartAfterEnd
	}
	f.DateRange = &domain.DateRange{Start: start, End: end}
	return f, nil
}
