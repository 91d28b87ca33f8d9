package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/daybookhq/accounts-go/internal/accounts/models"
)

// usernamePattern: letters, digits and underscore only. Length limits are
// enforced by the validator tags.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type newAccountInput struct {
	Username    string `validate:"required,min=3,max=50,account_username"`
	DisplayName string `validate:"required,max=100"`
	Bio         string `validate:"max=500"`
}

type usernameInput struct {
	Username string `validate:"required,min=3,max=50,account_username"`
}

type profileUpdateInput struct {
	Username    string `validate:"omitempty,min=3,max=50,account_username"`
	DisplayName string `validate:"omitempty,max=100"`
	Bio         string `validate:"omitempty,max=500"`
}

// inputValidator wraps go-playground/validator with the custom username rule
// and taxonomy error mapping. Validation failures carry KindValidation and
// are resolved without any network call.
type inputValidator struct {
	v *validator.Validate
}

func newInputValidator() *inputValidator {
	v := validator.New()
	// Registration only fails for a nil func or empty tag.
	_ = v.RegisterValidation("account_username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return &inputValidator{v: v}
}

func (iv *inputValidator) username(username string) error {
	return iv.check(usernameInput{Username: username}, models.CodeInvalidUsername)
}

func (iv *inputValidator) newAccount(username, displayName, bio string) error {
	return iv.check(newAccountInput{Username: username, DisplayName: displayName, Bio: bio}, models.CodeValidationFailed)
}

func (iv *inputValidator) profileUpdate(username, displayName, bio string) error {
	return iv.check(profileUpdateInput{Username: username, DisplayName: displayName, Bio: bio}, models.CodeValidationFailed)
}

func (iv *inputValidator) check(input any, code string) error {
	err := iv.v.Struct(input)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fieldError(fe))
		}
		return models.E(models.KindValidation, code, errors.New(strings.Join(msgs, "; ")))
	}
	return models.E(models.KindValidation, code, err)
}

// fieldError converts a single ValidationError into a short diagnostic.
func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "account_username":
		return field + " may only contain letters, digits and underscore"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
