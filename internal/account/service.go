// Package account はユーザー管理とプロフィール編集のビジネスロジックを提供する。
package account

import (
	"context"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/wasteman/internal/model"
	"github.com/hitoshi/wasteman/internal/repository"
	"github.com/hitoshi/wasteman/internal/security"
)

// Service はユーザーアカウントに関するビジネスロジックを提供する。
type Service struct {
	userRepo      repository.UserRepository
	avatarFetcher security.AvatarFetcherService
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, avatarFetcher security.AvatarFetcherService) *Service {
	return &Service{
		userRepo:      userRepo,
		avatarFetcher: avatarFetcher,
	}
}

// UserInput は管理者によるユーザー作成・更新の入力を表す。
type UserInput struct {
	Email    string
	Username string
	Phone    string
	Role     model.Role
}

func (i UserInput) validate() *model.ValidationError {
	verr := model.NewValidationError()
	if i.Username == "" {
		verr.Add("username", "ユーザー名を入力してください。")
	}
	if i.Email == "" {
		verr.Add("email", "メールアドレスを入力してください。")
	} else if _, err := mail.ParseAddress(i.Email); err != nil {
		verr.Add("email", "メールアドレスの形式が正しくありません。")
	}
	if !model.ValidRole(i.Role) {
		verr.Add("role", "役割はadmin、planner、driverのいずれかを指定してください。")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// GetUser は指定IDのユーザーを取得する。
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return user, nil
}

// ListUsers はユーザー一覧と総件数を返す。
func (s *Service) ListUsers(ctx context.Context, opts repository.UserListOptions) ([]*model.User, int, error) {
	return s.userRepo.List(ctx, opts)
}

// CreateUser は未有効化状態のユーザーを作成する。
// パスワードは設定されず、本人がアカウント有効化フローで初回設定する。
func (s *Service) CreateUser(ctx context.Context, input UserInput) (*model.User, error) {
	if verr := input.validate(); verr != nil {
		return nil, verr
	}

	existing, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		verr := model.NewValidationError()
		verr.Add("email", "このメールアドレスは既に登録されています。")
		return nil, verr
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     input.Email,
		Username:  input.Username,
		Phone:     input.Phone,
		Role:      input.Role,
		IsActive:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// UpdateUser は管理者によるユーザー情報の更新を行う。
func (s *Service) UpdateUser(ctx context.Context, id string, input UserInput) (*model.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if verr := input.validate(); verr != nil {
		return nil, verr
	}

	if input.Email != user.Email {
		existing, err := s.userRepo.FindByEmail(ctx, input.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			verr := model.NewValidationError()
			verr.Add("email", "このメールアドレスは既に登録されています。")
			return nil, verr
		}
	}

	user.Email = input.Email
	user.Username = input.Username
	user.Phone = input.Phone
	user.Role = input.Role
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ArchiveUser はユーザーをアーカイブする。アーカイブ中はログインできない。
func (s *Service) ArchiveUser(ctx context.Context, id string) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}
	if err := s.userRepo.SetArchived(ctx, id, true); err != nil {
		return err
	}
	slog.Info("user archived", slog.String("user_id", id))
	return nil
}

// RestoreUser はアーカイブ済みユーザーを復元する。
func (s *Service) RestoreUser(ctx context.Context, id string) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}
	if err := s.userRepo.SetArchived(ctx, id, false); err != nil {
		return err
	}
	slog.Info("user restored", slog.String("user_id", id))
	return nil
}

// DeleteUser はユーザーを完全に削除する。通常はArchiveUserを使用する。
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}
	return s.userRepo.DeleteByID(ctx, id)
}

// ProfileInput は本人によるプロフィール更新の入力を表す。
// ImageURLが指定された場合は画像を取得してプロフィール画像を差し替える。
type ProfileInput struct {
	Username string
	Phone    string
	ImageURL string
}

// UpdateProfile は本人のプロフィールを更新する。
// 役割とメールアドレスは本人からは変更できない。
func (s *Service) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (*model.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	verr := model.NewValidationError()
	if input.Username == "" {
		verr.Add("username", "ユーザー名を入力してください。")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	if input.ImageURL != "" {
		data, mime, err := s.avatarFetcher.Fetch(ctx, input.ImageURL)
		if err != nil {
			return nil, model.NewInvalidImageURLError(err.Error())
		}
		user.ImageProfileData = data
		user.ImageProfileMime = mime
	}

	user.Username = input.Username
	user.Phone = input.Phone
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetProfileImage は画像データを直接プロフィール画像に設定する。
// multipartアップロード経由で使用される。
func (s *Service) SetProfileImage(ctx context.Context, userID string, data []byte, mime string) (*model.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.ImageProfileData = data
	user.ImageProfileMime = mime
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
