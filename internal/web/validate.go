package web

import (
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"studycal/internal/gesture"
	"studycal/internal/model"
)

// maxCoord bounds any pointer or layout coordinate in viewport pixels.
const maxCoord = 1_000_000

// requestValidator wraps go-playground validator with the calendar rules.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("weekday", validateWeekday)
	v.RegisterStructValidation(validatePoint, gesture.Point{})
	v.RegisterStructValidation(validateRect, gesture.Rect{})
	v.RegisterStructValidation(validateColumn, gesture.Column{})
	return &requestValidator{validate: v}
}

// validateWeekday accepts a day index from 1 (Sunday) to 7 (Saturday).
func validateWeekday(fl validator.FieldLevel) bool {
	return model.ValidDay(int(fl.Field().Int()))
}

func validCoord(f float64) bool {
	return !math.IsNaN(f) && math.Abs(f) <= maxCoord
}

// reportCoords flags every out-of-range coordinate under its JSON name.
func reportCoords(sl validator.StructLevel, coords map[string]float64) {
	for name, f := range coords {
		if !validCoord(f) {
			sl.ReportError(f, name, name, "coord", "")
		}
	}
}

func validatePoint(sl validator.StructLevel) {
	p := sl.Current().Interface().(gesture.Point)
	reportCoords(sl, map[string]float64{"x": p.X, "y": p.Y})
}

func validateRect(sl validator.StructLevel) {
	r := sl.Current().Interface().(gesture.Rect)
	reportCoords(sl, map[string]float64{"left": r.Left, "top": r.Top, "width": r.Width, "height": r.Height})
}

func validateColumn(sl validator.StructLevel) {
	c := sl.Current().Interface().(gesture.Column)
	reportCoords(sl, map[string]float64{"scrollTop": c.ScrollTop})
}

// Check validates v and returns field -> message, or nil when v is valid.
func (rv *requestValidator) Check(v any) map[string]string {
	err := rv.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// Not a struct; nothing to check.
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		// Drop the leading struct name from "eventRequest.title".
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out[field] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "weekday":
		return "must be a weekday index from 1 to 7"
	case "coord":
		return "must be between -" + strconv.Itoa(maxCoord) + " and " + strconv.Itoa(maxCoord)
	default:
		return "is invalid"
	}
}

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}
