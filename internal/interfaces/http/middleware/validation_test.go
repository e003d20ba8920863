package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerbridge/backend/internal/interfaces/http/dto"
)

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func TestHandleValidationError(t *testing.T) {
	type connectRequest struct {
		AuthCode string `json:"auth_code" binding:"required"`
		Shop     string `json:"shop" binding:"required,url"`
	}

	SetupValidator()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/integrations/connect", func(c *gin.Context) {
		var req connectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	t.Run("invalid input yields per-field details", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/integrations/connect",
			strings.NewReader(`{"shop": "not-a-url"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "Request validation failed", resp.Error.Message)
		assert.Len(t, resp.Error.Details, 2)
	})

	t.Run("field names come from json tags", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/integrations/connect",
			strings.NewReader(`{"shop": "https://shop.example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "auth_code", resp.Error.Details[0].Field)
	})

	t.Run("valid input passes through", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/integrations/connect",
			strings.NewReader(`{"auth_code": "ac-123", "shop": "https://shop.example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetValidationMessage(t *testing.T) {
	type input struct {
		Required string `binding:"required"`
		Email    string `binding:"email"`
		Min      string `binding:"min=5"`
		Max      string `binding:"max=10"`
		Len      string `binding:"len=5"`
		UUID     string `binding:"uuid"`
		OneOf    string `binding:"oneof=active paused closed"`
		URL      string `binding:"url"`
	}

	v := validator.New()
	v.SetTagName("binding")
	err := v.Struct(input{
		Email: "invalid",
		Min:   "ab",
		Max:   "well over ten characters",
		Len:   "ab",
		UUID:  "invalid",
		OneOf: "archived",
		URL:   "invalid",
	})
	require.Error(t, err)

	expected := map[string]string{
		"Required": "This field is required",
		"Email":    "Invalid email format",
		"Min":      "Must be at least 5 characters",
		"Max":      "Must be at most 10 characters",
		"Len":      "Must be exactly 5 characters",
		"UUID":     "Invalid UUID format",
		"OneOf":    "Must be one of: active paused closed",
		"URL":      "Invalid URL format",
	}

	validationErrs := err.(validator.ValidationErrors)
	require.Len(t, validationErrs, len(expected))
	for _, e := range validationErrs {
		assert.Equal(t, expected[e.Field()], getValidationMessage(e), "field %s", e.Field())
	}
}

func TestFormatValidationErrors_NonValidatorError(t *testing.T) {
	resp := FormatValidationErrors(assert.AnError, "req-1")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Empty(t, resp.Error.Details)
}
