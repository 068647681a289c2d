package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
)

// BindRequest binds path, query and body values into T and validates it.
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := c.Bind(&v); err != nil {
		return v, httperror.WrapError(http.StatusBadRequest, err)
	}

	if v, err := Validate(v); err != nil {
		return v, httperror.WrapError(http.StatusBadRequest, err)
	}

	return v, nil
}

// BindFields reads a form relay body into a field map. JSON objects are decoded as is;
// urlencoded and multipart bodies keep the first value of each field.
func BindFields(c echo.Context) (map[string]any, error) {
	contentType := c.Request().Header.Get(echo.HeaderContentType)

	if strings.HasPrefix(contentType, echo.MIMEApplicationForm) || strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		params, err := c.FormParams()
		if err != nil {
			return nil, httperror.WrapError(http.StatusBadRequest, err)
		}
		fields := make(map[string]any, len(params))
		for k, vals := range params {
			if len(vals) > 0 {
				fields[k] = vals[0]
			}
		}
		return fields, nil
	}

	var fields map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, "request body is empty")
		}
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object of form fields")
	}
	if fields == nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object of form fields")
	}
	return fields, nil
}
