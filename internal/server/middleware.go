package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Identity headers injected by the auth gateway in front of this service.
// Token verification happens there, not here.
const (
	headerUserID    = "X-User-ID"
	headerUserStaff = "X-User-Staff"
)

// requireAuth extracts the requester identity from the gateway headers and
// stores it in the echo context under "userID" and "isStaff".
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := c.Request().Header.Get(headerUserID)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "malformed user identity")
		}

		c.Set("userID", userID)
		c.Set("isStaff", c.Request().Header.Get(headerUserStaff) == "true")
		return next(c)
	}
}

// requireStaff rejects non-staff requesters. Must run after requireAuth.
func (s *Server) requireStaff(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if staff, _ := c.Get("isStaff").(bool); !staff {
			return echo.NewHTTPError(http.StatusForbidden, "staff only")
		}
		return next(c)
	}
}

func requesterID(c echo.Context) (uuid.UUID, bool) {
	userID, ok := c.Get("userID").(uuid.UUID)
	return userID, ok
}

func requesterIsStaff(c echo.Context) bool {
	staff, _ := c.Get("isStaff").(bool)
	return staff
}
