// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/wasteman/internal/middleware"
	"github.com/hitoshi/wasteman/internal/model"
	"github.com/hitoshi/wasteman/internal/repository"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// listEnvelope はページネーション指定付きリストのレスポンス。
// ページ指定のないリクエストには素の配列を返すため、この封筒は
// page/page_sizeクエリがある場合のみ使用する。
type listEnvelope struct {
	Results any `json:"results"`
	Count   int `json:"count"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeList はリストレスポンスを書き込む。
// ページネーション指定がある場合は{results, count}の封筒で、
// ない場合は素の配列で返す。
func writeList(w http.ResponseWriter, opts repository.ListOptions, results any, count int) {
	if opts.Paginated() {
		writeJSON(w, http.StatusOK, listEnvelope{Results: results, Count: count})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// listOptionsFromQuery はpage/page_sizeクエリパラメータを解析する。
// どちらかが欠けている、または不正な場合はページネーションなしとして扱う。
func listOptionsFromQuery(r *http.Request) repository.ListOptions {
	page, err1 := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, err2 := strconv.Atoi(r.URL.Query().Get("page_size"))
	if err1 != nil || err2 != nil || page < 1 || pageSize < 1 {
		return repository.ListOptions{}
	}
	return repository.ListOptions{Page: page, PageSize: pageSize}
}

// decodeJSON はリクエストボディをJSONとして解析する。
// 解析に失敗した場合は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	return true
}

// requireUserID はコンテキストから認証済みユーザーIDを取得する。
// 取得できない場合は401を書き込み空文字列を返す。
func requireUserID(w http.ResponseWriter, r *http.Request) string {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return ""
	}
	return userID
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// バリデーションエラーは{フィールド名: [メッセージ...]}形式の400として返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var valErr *model.ValidationError
	if errors.As(err, &valErr) {
		middleware.WriteValidationErrorResponse(w, valErr)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials, model.ErrCodeInvalidOTP:
		return http.StatusUnauthorized
	case model.ErrCodeAccountArchived:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound,
		model.ErrCodeMunicipalityNotFound,
		model.ErrCodeBinNotFound,
		model.ErrCodeVehicleNotFound,
		model.ErrCodeLandfillNotFound,
		model.ErrCodeScenarioNotFound,
		model.ErrCodeSolutionNotFound:
		return http.StatusNotFound
	case model.ErrCodeScenarioNotSolvable:
		return http.StatusConflict
	case model.ErrCodeSolverFailed:
		return http.StatusBadGateway
	case model.ErrCodeInvalidImageURL:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
