// Package validation wraps go-playground/validator with the field rules of
// the API: usernames, slugs, years, and the message format returned to
// clients ({"field": ["message"]}).
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "api-yamdb/pkg/common/errors"
)

var (
	// 至少 3 个单词字符开头，与 Python re.match('^[\w]{3,}') 一致（Unicode 感知）
	usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_]{3,}`)
	slugPattern     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

	validate     *validator.Validate
	validateOnce sync.Once

	// 测试可以替换当前时间
	now = time.Now
)

// ReservedUsername cannot be claimed: /users/me is the self-service route.
const ReservedUsername = "me"

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// 错误里使用 json 字段名
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		mustRegister("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		mustRegister("notme", func(fl validator.FieldLevel) bool {
			return !IsReservedUsername(fl.Field().String())
		})
		mustRegister("slug", func(fl validator.FieldLevel) bool {
			return slugPattern.MatchString(fl.Field().String())
		})
		mustRegister("notfuture", func(fl validator.FieldLevel) bool {
			return fl.Field().Int() <= int64(now().Year())
		})
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// IsReservedUsername reports whether name is "me" in any letter case.
func IsReservedUsername(name string) bool {
	return strings.EqualFold(name, ReservedUsername)
}

// ValidateStruct validates s and returns apperrors.FieldErrors on failure.
func ValidateStruct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NonField(err.Error())
	}

	out := apperrors.FieldErrors{}
	for _, fe := range verrs {
		out.Add(fieldPath(fe), message(fe))
	}
	return out
}

// fieldPath 去掉顶层结构体名，保留 genre[0] 这样的下标
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if i := strings.Index(ns, "["); i >= 0 {
		return ns[:i]
	}
	return ns
}

func message(fe validator.FieldError) string {
	kind := fe.Kind()
	if kind == reflect.Ptr {
		kind = fe.Type().Elem().Kind()
	}
	isString := kind == reflect.String

	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		if isString {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "min":
		if isString {
			return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "oneof":
		return fmt.Sprintf("%q is not a valid choice.", fmt.Sprint(fe.Value()))
	case "username":
		return "Username is not allowed."
	case "notme":
		return `Username cannot be "me" in any letter case.`
	case "slug":
		return "Enter a valid slug consisting of letters, numbers, underscores or hyphens."
	case "notfuture":
		return "Year cannot be in the future."
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}
