package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avolkov/farview/internal/application/constant"
	"github.com/avolkov/farview/internal/relay/dto"
	"github.com/avolkov/farview/internal/relay/usecase"
)

type HostHandler struct {
	hostUsecase usecase.HostUsecase
}

func NewHostHandler(hostUsecase usecase.HostUsecase) *HostHandler {
	return &HostHandler{hostUsecase: hostUsecase}
}

// Register регистрирует хост в реестре. Хост дергает этот эндпоинт при
// каждом старте, поэтому повторная регистрация - не ошибка.
func (h *HostHandler) Register(c echo.Context) error {
	var req dto.RegisterHostRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	if err := h.hostUsecase.RegisterHost(c.Request().Context(), req.Identity, req.Alias, req.PIN); err != nil {
		slog.Error("register host failed", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not register host"})
	}

	return c.NoContent(http.StatusCreated)
}

// Token выдает JWT на подключение к комнате хоста.
func (h *HostHandler) Token(c echo.Context) error {
	var req dto.AuthRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	token, err := h.hostUsecase.Authenticate(c.Request().Context(), req.Identity, req.PIN)
	if errors.Is(err, usecase.ErrInvalidCredentials) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}
	if err != nil {
		slog.Error("authenticate host failed", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not create token"})
	}

	return c.JSON(http.StatusOK, dto.AuthResponse{Token: token})
}
