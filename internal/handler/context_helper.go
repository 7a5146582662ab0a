package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
	"github.com/DanialBetres/stepful-scheduling/pkg/response"
)

// pathID reads a required path parameter, writing a validation error when blank.
func pathID(c *gin.Context, name string) (string, bool) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" is required"))
		return "", false
	}
	return id, true
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
