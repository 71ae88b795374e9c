package app

// Command は収集管理サービスの起動モードを表す。
type Command string

const (
	// CommandServe はダッシュボードAPIサーバーとして起動する。
	CommandServe Command = "serve"
	// CommandWorker は定期メンテナンスワーカーとして起動する。
	// 現在は失効済みリフレッシュトークンの掃除を担う。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中サーバーの疎通確認を行って終了する。
	// distrolessコンテナのDocker HEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	"serve":       CommandServe,
	"worker":      CommandWorker,
	"migrate":     CommandMigrate,
	"healthcheck": CommandHealthcheck,
}

// ParseCommand は先頭のコマンドライン引数からサブコマンドを解析する。
// 引数なし・未知のコマンドはCommandServeとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}
