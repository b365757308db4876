package handlers

import (
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// parseBody decodes a JSON body into out. An empty body leaves out untouched.
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

// bodyOrEmpty decodes a JSON body into a T. A body that is missing, not
// declared as JSON, malformed or of the wrong shape yields the zero T.
func bodyOrEmpty[T any](c *fiber.Ctx) T {
	var out T
	if len(c.Body()) == 0 || !c.Is("json") {
		return out
	}
	if err := c.BodyParser(&out); err != nil {
		var empty T
		return empty
	}
	return out
}

// usernameParam returns the unescaped :username segment as an owned string.
func usernameParam(c *fiber.Ctx) (string, error) {
	username, err := url.PathUnescape(c.Params("username"))
	if err != nil {
		return "", apperrors.NewValidationError("invalid username", nil)
	}
	return strings.Clone(username), nil
}

func validationFailed(err error) error {
	errs, ok := err.(validation.Errors)
	if !ok {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	fields := make(map[string]any, len(errs))
	for field, fieldErr := range errs {
		fields[field] = fieldErr.Error()
	}

	message := "Invalid request."
	_, badUser := errs["username"]
	_, badPass := errs["password"]
	switch {
	case badUser || badPass:
		message = "Username and password are required."
	case errs["status"] != nil:
		message = "Status must be pending, approved or revoked."
	}
	return apperrors.NewValidationError(message, map[string]any{"fields": fields})
}
