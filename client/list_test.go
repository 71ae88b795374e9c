package client

import (
	"testing"
)

type listItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestNormalizeList_Envelope(t *testing.T) {
	body := []byte(`{"results":[{"id":"a","name":"A"},{"id":"b","name":"B"}],"count":25}`)

	result := NormalizeList[listItem](body)

	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	if result.Items[0].ID != "a" || result.Items[1].ID != "b" {
		t.Errorf("unexpected items: %+v", result.Items)
	}
	if result.TotalCount != 25 {
		t.Errorf("expected total 25, got %d", result.TotalCount)
	}
}

func TestNormalizeList_EnvelopeEmptyResults(t *testing.T) {
	// resultsフィールドが存在する以上、空でもエンベロープとして扱う
	result := NormalizeList[listItem]([]byte(`{"results":[],"count":0}`))

	if result.Items == nil {
		t.Fatal("items should be an empty slice, not nil")
	}
	if len(result.Items) != 0 || result.TotalCount != 0 {
		t.Errorf("expected empty result, got %d items total %d", len(result.Items), result.TotalCount)
	}
}

func TestNormalizeList_EnvelopeNullResults(t *testing.T) {
	result := NormalizeList[listItem]([]byte(`{"results":null,"count":7}`))

	if result.Items == nil || len(result.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", result.Items)
	}
	if result.TotalCount != 7 {
		t.Errorf("expected total 7, got %d", result.TotalCount)
	}
}

func TestNormalizeList_EnvelopeMissingCount(t *testing.T) {
	result := NormalizeList[listItem]([]byte(`{"results":[{"id":"a","name":"A"}]}`))

	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	if result.TotalCount != 0 {
		t.Errorf("missing count should normalize to 0, got %d", result.TotalCount)
	}
}

func TestNormalizeList_BareArray(t *testing.T) {
	body := []byte(`[{"id":"a","name":"A"},{"id":"b","name":"B"},{"id":"c","name":"C"},{"id":"d","name":"D"},{"id":"e","name":"E"}]`)

	result := NormalizeList[listItem](body)

	if len(result.Items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(result.Items))
	}
	if result.TotalCount != 5 {
		t.Errorf("bare array total should equal length, got %d", result.TotalCount)
	}
}

func TestNormalizeList_UnexpectedShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "null", body: `null`},
		{name: "number", body: `42`},
		{name: "string", body: `"hello"`},
		{name: "object without results", body: `{"count":10}`},
		{name: "empty body", body: ``},
		{name: "malformed json", body: `{"results":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeList[listItem]([]byte(tt.body))
			if result.Items == nil {
				t.Fatal("items should never be nil")
			}
			if len(result.Items) != 0 || result.TotalCount != 0 {
				t.Errorf("expected empty result, got %d items total %d", len(result.Items), result.TotalCount)
			}
		})
	}
}

func TestListResult_TotalPages(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		pageSize int
		want     int
	}{
		{name: "exact fit", total: 20, pageSize: 10, want: 2},
		{name: "partial last page", total: 8, pageSize: 7, want: 2},
		{name: "single page", total: 5, pageSize: 10, want: 1},
		{name: "empty", total: 0, pageSize: 10, want: 0},
		{name: "zero page size", total: 100, pageSize: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ListResult[listItem]{TotalCount: tt.total}
			if got := r.TotalPages(tt.pageSize); got != tt.want {
				t.Errorf("TotalPages(%d) with total %d = %d, want %d", tt.pageSize, tt.total, got, tt.want)
			}
		})
	}
}

func TestListResult_ShowPagination(t *testing.T) {
	r := ListResult[listItem]{TotalCount: 5}
	if r.ShowPagination(7) {
		t.Error("collection fitting in one page should not show pagination")
	}

	r = ListResult[listItem]{TotalCount: 8}
	if !r.ShowPagination(7) {
		t.Error("collection spanning two pages should show pagination")
	}

	if r.ShowPagination(0) {
		t.Error("zero page size should not show pagination")
	}
}

func TestFetchSequencer_LatestWins(t *testing.T) {
	var seq FetchSequencer

	first := seq.Next()
	second := seq.Next()

	if seq.IsLatest(first) {
		t.Error("stale token should not be latest")
	}
	if !seq.IsLatest(second) {
		t.Error("most recent token should be latest")
	}

	third := seq.Next()
	if seq.IsLatest(second) {
		t.Error("superseded token should not be latest")
	}
	if !seq.IsLatest(third) {
		t.Error("newest token should be latest")
	}
}
