package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func claimsMiddleware(allowed func(claims Claims) bool, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if allowed(claims) && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return claimsMiddleware(func(c Claims) bool { return c.IsAdmin }, roles...)
}

// teacherMiddleware admits teachers and admins.
func teacherMiddleware(roles ...string) echo.MiddlewareFunc {
	return claimsMiddleware(func(c Claims) bool { return c.IsTeacher || c.IsAdmin }, roles...)
}

// librarianMiddleware admits librarians and admins.
func librarianMiddleware(roles ...string) echo.MiddlewareFunc {
	return claimsMiddleware(func(c Claims) bool { return c.IsLibrarian || c.IsAdmin }, roles...)
}
