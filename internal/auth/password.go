// Package auth はログイン、トークン発行、アカウント有効化、
// パスワードリセットのビジネスロジックを提供する。
package auth

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/wasteman/internal/model"
)

const bcryptCost = 12

// HashPassword はパスワードをbcryptでハッシュ化する。
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword はパスワードとハッシュの一致を検証する。
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordStrength はパスワード強度を検証する。
// 8文字以上、英字と数字をそれぞれ1文字以上含むこと。
func ValidatePasswordStrength(password string) *model.ValidationError {
	verr := model.NewValidationError()

	if len(password) < 8 {
		verr.Add("password", "パスワードは8文字以上で入力してください。")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		verr.Add("password", "パスワードには英字を1文字以上含めてください。")
	}
	if !hasDigit {
		verr.Add("password", "パスワードには数字を1文字以上含めてください。")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
