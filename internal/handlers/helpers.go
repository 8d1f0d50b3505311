package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/senyabanana/tender-platform/internal/models"
	"github.com/senyabanana/tender-platform/internal/utils"

	"github.com/sirupsen/logrus"
)

// base - общие зависимости обработчиков.
type base struct {
	Actors  *ActorResolver
	Logger  *logrus.Entry
	Timeout time.Duration
}

// fail отправляет ошибку перехода как есть, прочие ошибки скрываются за fallback.
func (b base) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	logger := b.Logger.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path})
	var errorResponse *models.ErrorResponse
	if errors.As(err, &errorResponse) {
		logger.WithFields(logrus.Fields{
			"kind": errorResponse.Kind,
			"code": errorResponse.Code,
		}).Info(errorResponse.Message)
		utils.SendError(w, errorResponse)
		return
	}
	logger.WithField("error", err.Error()).Error(fallback)
	utils.SendError(w, models.ErrInternal.WithMessage(fallback))
}

func (b base) respond(w http.ResponseWriter, status int, payload any) {
	if err := utils.SendJSON(w, status, payload); err != nil {
		b.Logger.WithField("error", err.Error()).Warn("failed to encode response")
	}
}

// actor разрешает актора запроса; при ошибке ответ уже отправлен.
func (b base) actor(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, err := b.Actors.Resolve(ctx, r)
	if err != nil {
		b.fail(w, r, err, "failed to resolve session")
		return models.Actor{}, false
	}
	return actor, true
}

func (b base) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	if b.Timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), b.Timeout)
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.NewErrorResponse(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// act - общий путь для операций от имени пользователя.
func act[T any](b base, w http.ResponseWriter, r *http.Request, status int, fallback string, fn func(ctx context.Context, actor models.Actor) (T, error)) {
	ctx, cancel := b.withTimeout(r)
	defer cancel()

	actor, ok := b.actor(ctx, w, r)
	if !ok {
		return
	}
	result, err := fn(ctx, actor)
	if err != nil {
		b.fail(w, r, err, fallback)
		return
	}
	b.respond(w, status, result)
}

func pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	limit, offset, err := utils.ParseLimitOffset(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return limit, offset, true
}
