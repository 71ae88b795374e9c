// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, planner, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeAccountArchived      = "ACCOUNT_ARCHIVED"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeMunicipalityNotFound = "MUNICIPALITY_NOT_FOUND"
	ErrCodeBinNotFound          = "BIN_NOT_FOUND"
	ErrCodeVehicleNotFound      = "VEHICLE_NOT_FOUND"
	ErrCodeLandfillNotFound     = "LANDFILL_NOT_FOUND"
	ErrCodeScenarioNotFound     = "SCENARIO_NOT_FOUND"
	ErrCodeSolutionNotFound     = "SOLUTION_NOT_FOUND"
	ErrCodeInvalidOTP           = "INVALID_OTP"
	ErrCodeSolverFailed         = "SOLVER_FAILED"
	ErrCodeScenarioNotSolvable  = "SCENARIO_NOT_SOLVABLE"
	ErrCodeInvalidImageURL      = "INVALID_IMAGE_URL"
)

// ValidationError はフィールド単位のバリデーションエラーを表す。
// バックエンドは {フィールド名: [メッセージ...]} の形式でそのまま返し、
// クライアントはフォームのインラインエラーとして表示する。
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError は空のValidationErrorを生成する。
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add はフィールドにエラーメッセージを追加する。
func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

// HasErrors は1件以上のフィールドエラーを保持しているかを返す。
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewAccountArchivedError はアーカイブ済みアカウントのログイン拒否エラーを生成する。
func NewAccountArchivedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountArchived,
		Message:  "このアカウントはアーカイブされています。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", id),
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewMunicipalityNotFoundError は自治体未検出エラーを生成する。
func NewMunicipalityNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeMunicipalityNotFound,
		Message:  fmt.Sprintf("指定された自治体が見つかりません: %s", id),
		Category: "validation",
		Action:   "自治体IDを確認してください。",
	}
}

// NewBinNotFoundError はコンテナ未検出エラーを生成する。
func NewBinNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeBinNotFound,
		Message:  fmt.Sprintf("指定されたコンテナが見つかりません: %s", id),
		Category: "validation",
		Action:   "コンテナIDを確認してください。",
	}
}

// NewVehicleNotFoundError は車両未検出エラーを生成する。
func NewVehicleNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeVehicleNotFound,
		Message:  fmt.Sprintf("指定された車両が見つかりません: %s", id),
		Category: "validation",
		Action:   "車両IDを確認してください。",
	}
}

// NewLandfillNotFoundError は埋立地未検出エラーを生成する。
func NewLandfillNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeLandfillNotFound,
		Message:  fmt.Sprintf("指定された埋立地が見つかりません: %s", id),
		Category: "validation",
		Action:   "埋立地IDを確認してください。",
	}
}

// NewScenarioNotFoundError はシナリオ未検出エラーを生成する。
func NewScenarioNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeScenarioNotFound,
		Message:  fmt.Sprintf("指定されたシナリオが見つかりません: %s", id),
		Category: "planner",
		Action:   "シナリオIDを確認してください。",
	}
}

// NewSolutionNotFoundError はソリューション未検出エラーを生成する。
func NewSolutionNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeSolutionNotFound,
		Message:  fmt.Sprintf("指定されたソリューションが見つかりません: %s", id),
		Category: "planner",
		Action:   "ソリューションIDを確認してください。",
	}
}

// NewInvalidOTPError はワンタイムコード検証失敗エラーを生成する。
// 未発行・期限切れ・コード不一致・試行回数超過を区別せず同一メッセージを返す。
func NewInvalidOTPError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOTP,
		Message:  "確認コードが正しくないか、有効期限が切れています。",
		Category: "auth",
		Action:   "コードを再発行して再度お試しください。",
	}
}

// NewSolverFailedError は外部ソルバーの呼び出し失敗エラーを生成する。
func NewSolverFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSolverFailed,
		Message:  fmt.Sprintf("経路計算に失敗しました: %s", reason),
		Category: "planner",
		Action:   "しばらく待ってから再度実行してください。",
	}
}

// NewScenarioNotSolvableError は計算実行の前提を満たさないシナリオのエラーを生成する。
func NewScenarioNotSolvableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeScenarioNotSolvable,
		Message:  fmt.Sprintf("このシナリオは経路計算を実行できません: %s", reason),
		Category: "planner",
		Action:   "車両と収集対象コンテナが設定されているか確認してください。",
	}
}

// NewInvalidImageURLError はプロフィール画像URLの検証失敗エラーを生成する。
func NewInvalidImageURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageURL,
		Message:  fmt.Sprintf("画像URLを取得できません: %s", reason),
		Category: "validation",
		Action:   "公開されているHTTPSの画像URLを指定してください。",
	}
}
