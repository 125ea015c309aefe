package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/middleware"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// respondError maps a service error to the JSON error envelope. Internal and
// upstream causes are logged here and never sent to the client.
func respondError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindInternal, apperr.KindUpstream:
		logger.Log.Error("Request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	middleware.Abort(c, err)
}

// bindError turns a gin binding failure into a field-level ValidationError.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("invalid request body")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[lowerFirst(fe.Field())] = bindMessage(fe)
	}
	return apperr.ValidationFields("invalid request body", fields)
}

func bindMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// pathID parses a uuid route parameter.
func pathID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.ValidationFields("invalid id", map[string]string{name: "must be a uuid"})
	}
	return id, nil
}

// optionalID parses an optional uuid query or form value; empty means nil.
func optionalID(field, raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.ValidationFields("invalid id", map[string]string{field: "must be a uuid"})
	}
	return &id, nil
}

// idList parses repeated form values, skipping blanks and the "none" marker.
func idList(field string, raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" || strings.EqualFold(part, "none") {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, apperr.ValidationFields("invalid id", map[string]string{field: "must be a uuid"})
			}
			out = append(out, id)
		}
	}
	return out, nil
}

// formFiles returns the uploaded files under any of the given keys.
func formFiles(form *multipart.Form, keys ...string) []*multipart.FileHeader {
	var out []*multipart.FileHeader
	for _, k := range keys {
		out = append(out, form.File[k]...)
	}
	return out
}

// formValue reports a form value and whether the key was sent at all.
func formValue(form *multipart.Form, keys ...string) ([]string, bool) {
	for _, k := range keys {
		if v, ok := form.Value[k]; ok {
			return v, true
		}
	}
	return nil, false
}
