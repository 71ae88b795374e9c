package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/wasteman/internal/model"
	"github.com/hitoshi/wasteman/internal/repository"
)

// OTPPurpose はワンタイムコードの用途を表す。用途ごとにストアのキーを分離する。
type OTPPurpose string

const (
	// OTPPurposeSetup は初回アカウント有効化用。
	OTPPurposeSetup OTPPurpose = "setup"
	// OTPPurposeReset はパスワードリセット用。
	OTPPurposeReset OTPPurpose = "reset"
)

// OTPStore はワンタイムコードの発行と検証のインターフェース。
type OTPStore interface {
	// Issue は新しいコードを発行して保存する。既存コードは上書きされる。
	Issue(ctx context.Context, purpose OTPPurpose, email string) (string, error)
	// Verify はコードを検証する。一致した場合はコードを消費して再利用を防ぐ。
	// 未発行・期限切れ・不一致・試行回数超過はすべてfalseを返す。
	Verify(ctx context.Context, purpose OTPPurpose, email, code string) (bool, error)
}

// Mailer はワンタイムコードの送信インターフェース。
type Mailer interface {
	SendOTP(ctx context.Context, to string, purpose OTPPurpose, code string) error
}

// TokenPair は発行済みのアクセストークンとリフレッシュトークンの組。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// ReuseRecorder はリフレッシュトークン再利用検出イベントの通知先。
type ReuseRecorder interface {
	RecordTokenReuseDetected()
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	tokenRepo repository.RefreshTokenRepository
	tokens    *TokenManager
	otpStore  OTPStore
	mailer    Mailer
	reuse     ReuseRecorder
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	tokenRepo repository.RefreshTokenRepository,
	tokens *TokenManager,
	otpStore OTPStore,
	mailer Mailer,
) *Service {
	return &Service{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		tokens:    tokens,
		otpStore:  otpStore,
		mailer:    mailer,
	}
}

// SetReuseRecorder は再利用検出イベントの通知先を設定する。nilの場合は通知しない。
func (s *Service) SetReuseRecorder(r ReuseRecorder) {
	s.reuse = r
}

// TokenManager はトークンマネージャーを返す。ミドルウェアのトークン検証で使用する。
func (s *Service) TokenManager() *TokenManager {
	return s.tokens
}

// Login はメールアドレスとパスワードで認証し、トークンペアを発行する。
// アーカイブ済みアカウントはログインできない。
// 認証成功時はlast_login_atを更新する。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error) {
	// 1. ユーザーを検索。未登録とパスワード不一致は同一エラーにする
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || !CheckPassword(user.PasswordHash, password) {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	// 2. アーカイブ済みチェック
	if user.IsArchived {
		return nil, nil, model.NewAccountArchivedError()
	}

	// 3. トークンペアを発行
	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	// 4. ログインアクティビティを記録。失敗してもログイン自体は成功させる
	if err := s.userRepo.RecordLogin(ctx, user.ID, time.Now()); err != nil {
		slog.Warn("failed to record login activity",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, pair, nil
}

// Logout はリフレッシュトークンを失効させ、last_logout_atを更新する。
// トークンが未知でもエラーにしない。ログアウトは常に成功させる。
// ログアウトはアクセストークンの期限切れ後も呼ばれるためuserIDは空のことがあり、
// その場合はリフレッシュトークンのレコードから本人を特定する。
func (s *Service) Logout(ctx context.Context, userID, rawRefreshToken string) error {
	if rawRefreshToken != "" {
		token, err := s.tokenRepo.FindByHash(ctx, HashRefreshToken(rawRefreshToken))
		if err != nil {
			return fmt.Errorf("failed to find refresh token: %w", err)
		}
		if token != nil {
			if userID == "" {
				userID = token.UserID
			}
			if !token.Revoked() {
				if err := s.tokenRepo.Revoke(ctx, token.ID, "", time.Now()); err != nil {
					return fmt.Errorf("failed to revoke refresh token: %w", err)
				}
			}
		}
	}

	// 本人を特定できないままのログアウトはCookieクリアだけで完結する
	if userID == "" {
		return nil
	}

	if err := s.userRepo.RecordLogout(ctx, userID, time.Now()); err != nil {
		slog.Warn("failed to record logout activity",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("user logged out", slog.String("user_id", userID))
	return nil
}

// ErrInvalidRefreshToken はリフレッシュトークンが無効な場合のエラー。
// 期限切れ・失効済み・未知のトークンを区別せずに返す。
var ErrInvalidRefreshToken = fmt.Errorf("invalid refresh token")

// Refresh はリフレッシュトークンをローテーションし、新しいトークンペアを発行する。
// 失効済みトークンの再利用を検出した場合は、盗難の可能性があるため
// 同一ユーザーのトークンチェーン全体を無効化する。
func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (*model.User, *TokenPair, error) {
	// 1. ハッシュでトークンレコードを検索
	token, err := s.tokenRepo.FindByHash(ctx, HashRefreshToken(rawRefreshToken))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	if token == nil {
		return nil, nil, ErrInvalidRefreshToken
	}

	// 2. 再利用検出。ローテーション済みトークンが再提示された場合は
	//    ユーザーの全トークンを失効させる
	if token.Revoked() {
		slog.Warn("revoked refresh token reused, revoking all tokens for user",
			slog.String("user_id", token.UserID),
			slog.String("token_id", token.ID),
		)
		if s.reuse != nil {
			s.reuse.RecordTokenReuseDetected()
		}
		if err := s.tokenRepo.RevokeAllForUser(ctx, token.UserID, time.Now()); err != nil {
			return nil, nil, fmt.Errorf("failed to revoke tokens for user: %w", err)
		}
		return nil, nil, ErrInvalidRefreshToken
	}

	// 3. 期限切れチェック
	if token.Expired(time.Now()) {
		return nil, nil, ErrInvalidRefreshToken
	}

	// 4. ユーザーを取得。アーカイブ済みは更新を拒否する
	user, err := s.userRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.IsArchived {
		return nil, nil, ErrInvalidRefreshToken
	}

	// 5. 新しいペアを発行し、旧トークンを失効させる
	pair, newTokenID, err := s.issueTokenPairWithID(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	if err := s.tokenRepo.Revoke(ctx, token.ID, newTokenID, time.Now()); err != nil {
		return nil, nil, fmt.Errorf("failed to revoke rotated token: %w", err)
	}

	return user, pair, nil
}

// RequestActivationOTP はアカウント有効化用のワンタイムコードを発行して送信する。
// メールアドレスが未登録かどうかをレスポンスで判別できないよう、
// 未登録の場合もエラーにしない。
func (s *Service) RequestActivationOTP(ctx context.Context, email string) error {
	return s.requestOTP(ctx, OTPPurposeSetup, email)
}

// RequestPasswordResetOTP はパスワードリセット用のワンタイムコードを発行して送信する。
func (s *Service) RequestPasswordResetOTP(ctx context.Context, email string) error {
	return s.requestOTP(ctx, OTPPurposeReset, email)
}

func (s *Service) requestOTP(ctx context.Context, purpose OTPPurpose, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || user.IsArchived {
		// メールアドレスの存在を漏らさない
		slog.Info("otp requested for unknown or archived email", slog.String("purpose", string(purpose)))
		return nil
	}

	code, err := s.otpStore.Issue(ctx, purpose, email)
	if err != nil {
		return fmt.Errorf("failed to issue otp: %w", err)
	}

	if err := s.mailer.SendOTP(ctx, email, purpose, code); err != nil {
		return fmt.Errorf("failed to send otp: %w", err)
	}

	slog.Info("otp issued",
		slog.String("purpose", string(purpose)),
		slog.String("user_id", user.ID),
	)
	return nil
}

// ConfirmActivation はワンタイムコードを検証してパスワードを設定し、
// アカウントを有効化する。
func (s *Service) ConfirmActivation(ctx context.Context, email, code, newPassword string) error {
	return s.confirmOTP(ctx, OTPPurposeSetup, email, code, newPassword, model.PasswordChangeInitial)
}

// ConfirmPasswordReset はワンタイムコードを検証してパスワードを再設定する。
// 再設定後は既存のリフレッシュトークンをすべて失効させる。
func (s *Service) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	return s.confirmOTP(ctx, OTPPurposeReset, email, code, newPassword, model.PasswordChangeForgot)
}

func (s *Service) confirmOTP(ctx context.Context, purpose OTPPurpose, email, code, newPassword string, reason model.PasswordChangeReason) error {
	if verr := ValidatePasswordStrength(newPassword); verr != nil {
		return verr
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || user.IsArchived {
		// 未登録でもコード不一致と同じエラーを返す
		return model.NewInvalidOTPError()
	}

	ok, err := s.otpStore.Verify(ctx, purpose, email, code)
	if err != nil {
		return fmt.Errorf("failed to verify otp: %w", err)
	}
	if !ok {
		return model.NewInvalidOTPError()
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.RecordPasswordChange(ctx, user.ID, hash, reason, time.Now()); err != nil {
		return fmt.Errorf("failed to record password change: %w", err)
	}

	// パスワードリセット後は既存セッションをすべて無効化する
	if reason == model.PasswordChangeForgot {
		if err := s.tokenRepo.RevokeAllForUser(ctx, user.ID, time.Now()); err != nil {
			return fmt.Errorf("failed to revoke tokens for user: %w", err)
		}
	}

	slog.Info("password set via otp",
		slog.String("purpose", string(purpose)),
		slog.String("user_id", user.ID),
	)
	return nil
}

// ChangePassword は現在のパスワードを検証して新しいパスワードに変更する。
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError(userID)
	}

	if !CheckPassword(user.PasswordHash, currentPassword) {
		verr := model.NewValidationError()
		verr.Add("current_password", "現在のパスワードが正しくありません。")
		return verr
	}
	if verr := ValidatePasswordStrength(newPassword); verr != nil {
		return verr
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.RecordPasswordChange(ctx, user.ID, hash, model.PasswordChangeManual, time.Now()); err != nil {
		return fmt.Errorf("failed to record password change: %w", err)
	}

	slog.Info("password changed", slog.String("user_id", user.ID))
	return nil
}

func (s *Service) issueTokenPair(ctx context.Context, user *model.User) (*TokenPair, error) {
	pair, _, err := s.issueTokenPairWithID(ctx, user)
	return pair, err
}

// issueTokenPairWithID はトークンペアを発行し、リフレッシュトークンのレコードIDも返す。
// ローテーション時にreplaced_byへ記録するために使用する。
func (s *Service) issueTokenPairWithID(ctx context.Context, user *model.User) (*TokenPair, string, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, "", err
	}

	rawRefresh, hash, err := s.tokens.NewRefreshToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	record := &model.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: now.Add(s.tokens.RefreshTokenTTL()),
		CreatedAt: now,
	}
	if err := s.tokenRepo.Create(ctx, record); err != nil {
		return nil, "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: rawRefresh}, record.ID, nil
}
