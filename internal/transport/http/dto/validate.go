package dto

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/classhub/identity-service/internal/domain"
)

var validate *validator.Validate

var mobileRe = regexp.MustCompile(`^1[3-9][0-9]{9}$`)

func init() {
	validate = validator.New()

	// report fields by their json names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("cn_mobile", func(fl validator.FieldLevel) bool {
		return mobileRe.MatchString(fl.Field().String())
	})

	_ = validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		role := fl.Field().String()
		// super_admin is seeded, never assigned through the API
		return domain.IsValidRole(role) && role != string(domain.RoleSuperAdmin)
	})
}

// checkStruct runs the validator tags and maps the first failure to a
// domain error. The identity service re-validates; this layer exists
// for early, friendly 400s.
func checkStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return domain.ErrInvalidJSON(err)
	}

	fe := verrs[0]
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return domain.ErrMissingField(field)
	case "email":
		return domain.ErrInvalidField(field, "invalid email format")
	case "cn_mobile":
		return domain.ErrInvalidField(field, "must be an 11-digit mobile number")
	case "user_role":
		return domain.ErrInvalidRole(fe.Value().(string))
	case "min":
		if field == "password" || field == "new_password" {
			return domain.ErrWeakPassword("min length " + fe.Param())
		}
		return domain.ErrInvalidField(field, "must be at least "+fe.Param()+" characters")
	case "max":
		return domain.ErrInvalidField(field, "must be at most "+fe.Param()+" characters")
	case "oneof":
		return domain.ErrInvalidField(field, "must be one of: "+fe.Param())
	default:
		return domain.ErrInvalidField(field, "invalid value")
	}
}
