// Package validators holds the shared request checks used by the per-area
// validator middleware.
package validators

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"coursehub/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("nohtml", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), "<>{}")
	})
	return v
}

// Struct validates s and returns a field -> message map, empty when valid.
func Struct(s interface{}) map[string]string {
	errors := make(map[string]string)
	err := validate.Struct(s)
	if err == nil {
		return errors
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errors["body"] = err.Error()
		return errors
	}
	for _, fe := range verrs {
		key := fieldKey(fe)
		if _, exists := errors[key]; !exists {
			errors[key] = message(fe)
		}
	}
	return errors
}

// fieldKey drops the top-level struct name from the namespace: "Req.positions[0].id" -> "positions[0].id".
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required!", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long!", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s!", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must not exceed %s characters!", field, fe.Param())
		}
		return fmt.Sprintf("%s must not exceed %s!", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or greater!", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s!", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s!", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL!", field)
	case "slug":
		return fmt.Sprintf("%s may only contain lowercase letters, digits and dashes!", field)
	case "nohtml":
		return fmt.Sprintf("%s contains invalid characters (e.g., <, >, {, })!", field)
	default:
		return fmt.Sprintf("%s is invalid!", field)
	}
}

// ParamID reads a positive numeric route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Params(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// IDParams stores every named route parameter as a uint local under the same name.
// It answers 400 for a missing or non-numeric id.
func IDParams(names ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, name := range names {
			id, ok := ParamID(c, name)
			if !ok {
				return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid "+name+"!", nil)
			}
			c.Locals(name, id)
		}
		return c.Next()
	}
}

// Body parses the request body into a new T, validates it and stores it under key.
// checks run before the struct tags and may normalize the value.
func Body[T any](key string, checks ...func(*T) map[string]string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(T)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)
		for _, fn := range checks {
			for k, v := range fn(reqData) {
				errors[k] = v
			}
		}
		for k, v := range Struct(reqData) {
			if _, exists := errors[k]; !exists {
				errors[k] = v
			}
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals(key, reqData)
		return c.Next()
	}
}
