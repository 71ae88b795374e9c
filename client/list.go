package client

import (
	"bytes"
	"encoding/json"
	"sync/atomic"
)

// ListResult は正規化済みのリスト取得結果。
// フェッチごとに新しく生成され、その後変更されない。
type ListResult[T any] struct {
	Items      []T
	TotalCount int
}

// NormalizeList はバックエンドのリストレスポンスを統一形式に正規化する。
// バックエンドはエンドポイントごとにページネーションの有無が異なるため、
// すべてのリソースで同一の規則を適用する:
//
//  1. resultsフィールドを持つオブジェクト（空でも）→ items=results, total=count（欠落時0）
//  2. 素の配列 → items=配列, total=長さ
//  3. それ以外（null・不正な形式など）→ items=空, total=0
func NormalizeList[T any](body []byte) ListResult[T] {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ListResult[T]{Items: []T{}}
	}

	if trimmed[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return ListResult[T]{Items: []T{}}
		}

		raw, ok := obj["results"]
		if !ok {
			return ListResult[T]{Items: []T{}}
		}

		var items []T
		if err := json.Unmarshal(raw, &items); err != nil || items == nil {
			items = []T{}
		}

		total := 0
		if rawCount, ok := obj["count"]; ok {
			_ = json.Unmarshal(rawCount, &total)
		}
		return ListResult[T]{Items: items, TotalCount: total}
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil || items == nil {
			return ListResult[T]{Items: []T{}}
		}
		return ListResult[T]{Items: items, TotalCount: len(items)}
	}

	return ListResult[T]{Items: []T{}}
}

// TotalPages はページサイズからページ数を導出する。
func (r ListResult[T]) TotalPages(pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (r.TotalCount + pageSize - 1) / pageSize
}

// ShowPagination はページネーションUIを表示すべきかを返す。
// 1ページに収まるコレクションはページ制御自体を表示しない。
func (r ListResult[T]) ShowPagination(pageSize int) bool {
	return pageSize > 0 && r.TotalCount > pageSize
}

// FetchSequencer はフィルタ変更の連打時に古いレスポンスを破棄するための
// 単調増加シーケンストークンを提供する。最後に発行したフェッチの結果のみ適用する。
type FetchSequencer struct {
	seq atomic.Uint64
}

// Next は新しいフェッチ開始時にトークンを発行する。
func (s *FetchSequencer) Next() uint64 {
	return s.seq.Add(1)
}

// IsLatest はトークンが最新のフェッチのものかを返す。
// falseの場合、そのレスポンスは破棄すべき。
func (s *FetchSequencer) IsLatest(token uint64) bool {
	return s.seq.Load() == token
}
