// Package validate checks input documents before they reach the store and
// reports the first problem as an apperr.ValidationError.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/starboard/internal/apperr"
	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/model"
)

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("hhmm", isHHMM)
	_ = v.RegisterValidation("ymd", isYMD)
	v.RegisterStructValidation(taskRules, model.TaskInput{})
	return &Validator{v: v}
}

// Struct validates s and converts the first failure into a ValidationError.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Invalid("", err.Error())
	}
	fe := verrs[0]
	return apperr.Invalid(fieldPath(fe.Namespace()), reason(fe))
}

// fieldPath drops the struct type from a namespace like
// "TaskInput.time_window.start".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "hhmm":
		return "must be a zero-padded HH:MM time"
	case "ymd":
		return "must be a YYYY-MM-DD date"
	case "window_order":
		return "start must not be after end"
	case "recurring_due_date":
		return "is only allowed on one-time tasks"
	case "one_time_days":
		return "is only allowed on daily or weekly tasks"
	default:
		return "failed " + fe.Tag()
	}
}

func isHHMM(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse(clock.TimeLayout, s)
	return err == nil
}

func isYMD(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 10 {
		return false
	}
	_, err := time.Parse(clock.DateLayout, s)
	return err == nil
}

func taskRules(sl validator.StructLevel) {
	in := sl.Current().Interface().(model.TaskInput)

	if w := in.TimeWindow; w != nil && len(w.Start) == 5 && len(w.End) == 5 && w.Start > w.End {
		sl.ReportError(w.Start, "time_window", "TimeWindow", "window_order", "")
	}
	if in.Frequency.Recurring() && in.DueDate != nil {
		sl.ReportError(in.DueDate, "due_date", "DueDate", "recurring_due_date", "")
	}
	if in.Frequency == model.FrequencyOneTime && len(in.RecurrenceDays) > 0 {
		sl.ReportError(in.RecurrenceDays, "recurrence_days", "RecurrenceDays", "one_time_days", "")
	}
}
