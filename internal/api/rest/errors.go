package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/feral-file/ff-rewards/internal/api/shared/errors"
)

// respondBadRequest responds with a bad request error
func respondBadRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, apierrors.NewBadRequestError(message, details...))
}

// respondValidationError responds with a validation error
func respondValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, apierrors.NewValidationError(message))
}

// respondError responds with the API error carried by err, or a generic internal error
func respondError(c *gin.Context, err error) {
	var apiErr *apierrors.APIError
	if !errors.As(err, &apiErr) {
		apiErr = apierrors.FromDomain(err)
	}
	c.JSON(apiErr.StatusCode(), apiErr)
}
