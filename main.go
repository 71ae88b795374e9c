// wastemanは自治体のゴミ収集計画を管理するAPIサーバー。
//
// サブコマンド:
//
//	serve       APIサーバーを起動する（デフォルト）
//	worker      期限切れトークンのクリーンアップワーカーを起動する
//	migrate     データベースマイグレーションを実行する
//	healthcheck ヘルスチェックを実行する（Dockerヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/wasteman/internal/app"
)

func main() {
	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
