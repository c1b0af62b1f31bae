// errors стандартизирует ответы об ошибках HTTP-слоя доски.
// На вход он принимает ошибку сервисного слоя, а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Все отказы аутентификации (просрочен, подделан, не текущий, участник
// удалён) сливаются в один ответ 401/unauthenticated. Конкретная причина
// остаётся в логах и метриках.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/go-community-board/internal/service"
	"github.com/pribylovaa/go-community-board/internal/storage"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// ErrBadRequest — локальная ошибка разбора входа в хендлере (битый JSON, UUID).
var ErrBadRequest = stderrors.New("invalid argument")

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку сервиса в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil - программная ошибка вызова: 500/internal, чтобы не
//     послать "200 OK" с телом ошибки и не маскировать баг;
//   - отказы аутентификации - 401 с фиксированным сообщением;
//   - ошибки валидации - 400 с текстом сентинела (он не содержит входных данных);
//   - неизвестные ошибки (в т.ч. сбои хранилищ) - 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	httpStatus, code, msg := classify(err)

	return httpStatus, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// validation — ошибки ввода, текст которых безопасно отдавать клиенту.
var validation = []error{
	service.ErrInvalidEmail,
	service.ErrInvalidName,
	service.ErrWeakPassword,
	service.ErrEmptyPassword,
	service.ErrPasswordTooLong,
	service.ErrInvalidRole,
}

// classify — маппинг ошибки сервиса -> HTTP/FE-код/сообщение:
//   - ErrUnauthenticated (и все производные) -> 401
//   - ошибки валидации, ErrBadRequest -> 400
//   - ErrForbidden -> 403
//   - ErrUserNotFound, storage.ErrNotFound -> 404
//   - ErrEmailTaken, ErrAccountExists -> 409
//   - context.Canceled -> 499 (клиент закрыл соединение)
//   - context.DeadlineExceeded -> 504
//   - прочее -> 500/internal
func classify(err error) (int, string, string) {
	if err == nil {
		return http.StatusInternalServerError, "internal", "internal error"
	}

	switch {
	case stderrors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case stderrors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case stderrors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "permission_denied", "permission denied"
	case stderrors.Is(err, service.ErrUserNotFound), stderrors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case stderrors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "already_exists", service.ErrEmailTaken.Error()
	case stderrors.Is(err, service.ErrAccountExists):
		return http.StatusConflict, "already_exists", "already exists"
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	}

	for _, v := range validation {
		if stderrors.Is(err, v) {
			return http.StatusBadRequest, "invalid_argument", v.Error()
		}
	}

	return http.StatusInternalServerError, "internal", "internal error"
}
