package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"gatehouse-backend/internal/auth"
	"gatehouse-backend/internal/database"
	"gatehouse-backend/internal/models"
)

// createUserHandler handles POST /api/users (signup)
func createUserHandler(c echo.Context) error {
	var req models.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	if req.Username == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "username is required",
		})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "password must be at least 8 characters",
		})
	}

	passwordHash, err := auth.HashPassword(req.Password, hashCost)
	if err != nil {
		c.Logger().Error("hash password error: ", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create user",
		})
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		AuthType:     models.AuthTypeLocal,
		SecondFactor: req.SecondFactor,
	}

	if err := userRepo.Create(c.Request().Context(), user); err != nil {
		if errors.Is(err, database.ErrUserAlreadyExists) {
			return c.JSON(http.StatusConflict, map[string]string{
				"error": "username already exists",
			})
		}
		c.Logger().Error("create user error: ", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create user",
		})
	}

	return c.JSON(http.StatusCreated, user)
}

// getUserHandler handles GET /api/users/:id
func getUserHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid user ID",
		})
	}

	user, err := userRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "user not found",
			})
		}
		c.Logger().Error("get user error: ", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to get user",
		})
	}

	return c.JSON(http.StatusOK, user)
}

// deleteUserHandler handles DELETE /api/users/:id. Users may only
// delete their own account; their live sessions become orphans that the
// resolver cleans up on next contact.
func deleteUserHandler(c echo.Context) error {
	principal := auth.PrincipalFromContext(c)
	if principal == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "authentication required",
		})
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid user ID",
		})
	}

	if principal.User.ID != id {
		return c.JSON(http.StatusForbidden, map[string]string{
			"error": "cannot delete another user",
		})
	}

	if err := userRepo.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "user not found",
			})
		}
		c.Logger().Error("delete user error: ", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to delete user",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "user deleted",
	})
}
