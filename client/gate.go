package client

// GateState は役割ゲートの判定結果を表す。
// セッション状態の純関数として導出され、内部遷移を持たない。
type GateState int

const (
	// GateChecking はセッション復元中でまだ判定できない状態。
	// ログイン画面の一瞬の表示を避けるため、何も描画すべきでない。
	GateChecking GateState = iota
	// GateAnonymous は未認証。ログイン画面へ誘導し、
	// 元のリクエスト先を復帰用に保持する。
	GateAnonymous
	// GateWrongRole は認証済みだが役割が一致しない。
	// リダイレクトせずアクセス拒否を表示する終端状態。
	GateWrongRole
	// GateAuthorized は保護対象の表示を許可する。
	GateAuthorized
)

func (s GateState) String() string {
	switch s {
	case GateChecking:
		return "checking"
	case GateAnonymous:
		return "anonymous"
	case GateWrongRole:
		return "wrong-role"
	case GateAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// GateDecision はゲート判定の結果。
type GateDecision struct {
	State GateState
	// ReturnTo はGateAnonymousのとき、ログイン後に戻るべき元のリクエスト先。
	ReturnTo string
}

// EvaluateGate はセッションのスナップショットと要求役割からゲート状態を導出する。
// requiredRoleが空文字列の場合は認証のみを要求する。
// 役割は完全一致で判定する（adminがplannerルートを跨ぐ許可はルーター側の責務）。
func EvaluateGate(snap Snapshot, requiredRole string, requested string) GateDecision {
	if snap.Loading {
		return GateDecision{State: GateChecking}
	}
	if !snap.Authenticated || snap.User == nil {
		return GateDecision{State: GateAnonymous, ReturnTo: requested}
	}
	if requiredRole != "" && snap.User.Role != requiredRole {
		return GateDecision{State: GateWrongRole}
	}
	return GateDecision{State: GateAuthorized}
}

// ログイン後の遷移先
const (
	// DestActivation はアカウント有効化フロー。
	DestActivation = "/activate"
	// DestPlannerDashboard はプランナーダッシュボード。
	DestPlannerDashboard = "/planner"
	// DestAdminDashboard は管理者ダッシュボード。
	DestAdminDashboard = "/admin"
)

// PostLoginDestination はログイン直後の遷移先を決定する。
// 未有効化アカウントは役割を問わず有効化フローへ誘導する。
func PostLoginDestination(user *User) string {
	if user == nil {
		return DestActivation
	}
	if !user.IsActive {
		return DestActivation
	}
	if user.Role == "planner" {
		return DestPlannerDashboard
	}
	return DestAdminDashboard
}
