package repository

import (
	"database/sql"
	"fmt"
)

// requireRowsAffected は更新・削除が1行以上に適用されたことを確認する。
// 対象が存在しない場合はエラーを返す。
func requireRowsAffected(result sql.Result, entity, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
