// Package mailer はワンタイムコードの送信を提供する。
package mailer

import (
	"context"
	"log/slog"

	"github.com/hitoshi/wasteman/internal/auth"
)

// LogMailer はメールを送信せず、送信内容を構造化ログに出力する実装。
// ローカル開発とステージング環境で使用する。
// 本番のSMTP配送はデプロイ環境側のメールリレーに委ねる。
type LogMailer struct{}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// SendOTP はワンタイムコードの送信内容をログに出力する。
func (m *LogMailer) SendOTP(ctx context.Context, to string, purpose auth.OTPPurpose, code string) error {
	slog.Info("otp mail dispatched",
		slog.String("to", to),
		slog.String("purpose", string(purpose)),
		slog.String("code", code),
	)
	return nil
}

var _ auth.Mailer = (*LogMailer)(nil)
