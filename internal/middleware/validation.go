package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sandipay/auth-service/internal/constants"
	"github.com/sandipay/auth-service/pkg/logger"
	"github.com/sandipay/auth-service/pkg/validation"
	"go.uber.org/zap"
)

type ValidationMiddleware struct {
	validate *validator.Validate
}

func NewValidationMiddleware() *ValidationMiddleware {
	validate := validator.New()
	return &ValidationMiddleware{validate: validate}
}

// ValidateRequestBody validates the JSON body against the struct built
// by factory, then restores the body for the handler's own binding.
func (m *ValidationMiddleware) ValidateRequestBody(factory func() interface{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if ct := c.GetHeader(constants.HeaderContentType); !strings.HasPrefix(ct, constants.ContentTypeJSON) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{
				"message": "Content-Type harus application/json",
			})
			c.Abort()
			return
		}

		var bodyBytes []byte
		if c.Request.Body != nil {
			var err error
			bodyBytes, err = io.ReadAll(c.Request.Body)
			if err != nil {
				logger.GetLogger().Error("Middleware: Failed to read request body",
					zap.String("client_ip", clientIP),
					zap.String("path", c.Request.URL.Path),
					zap.Error(err),
				)
				c.JSON(http.StatusBadRequest, gin.H{
					"message": "Gagal membaca request body",
				})
				c.Abort()
				return
			}
		}

		// Restore body untuk dapat dibaca kembali
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		request := factory()

		if err := json.Unmarshal(bodyBytes, request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"message": "Format JSON tidak valid",
			})
			c.Abort()
			return
		}

		if err := m.validate.Struct(request); err != nil {
			var validationErrors []string

			for _, e := range err.(validator.ValidationErrors) {
				if fieldMessages := validation.CustomMessage(e.Field()); fieldMessages != nil {
					if msg, exists := fieldMessages[e.Tag()]; exists {
						validationErrors = append(validationErrors, msg)
						continue
					}
				}
				validationErrors = append(validationErrors, validation.DefaultMessage(e.Field(), e.Tag()))
			}

			logger.GetLogger().Warn("Middleware: Request validation failed",
				zap.String("client_ip", clientIP),
				zap.String("path", c.Request.URL.Path),
				zap.Strings("validation_errors", validationErrors),
			)

			c.JSON(http.StatusBadRequest, gin.H{
				"message": "Validasi gagal",
				"details": validationErrors,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
