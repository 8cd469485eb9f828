package repository

import "testing"

func TestPageInfoFor(t *testing.T) {
	tests := []struct {
		total     int64
		perPage   int
		wantPages int64
	}{
		{25, 10, 3},
		{20, 10, 2},
		{0, 10, 0},
		{1, 10, 1},
		{9, 3, 3},
	}

	for _, tt := range tests {
		info := pageInfoFor(tt.total, tt.perPage)
		if info.Pages != tt.wantPages {
			t.Fatalf("pageInfoFor(%d, %d).Pages = %d, want %d", tt.total, tt.perPage, info.Pages, tt.wantPages)
		}
		if info.Total != tt.total {
			t.Fatalf("pageInfoFor(%d, %d).Total = %d, want %d", tt.total, tt.perPage, info.Total, tt.total)
		}
	}
}

func TestPaginationOffset(t *testing.T) {
	tests := []struct {
		page, perPage int
		want          int
	}{
		{1, 10, 0},
		{2, 10, 10},
		{3, 25, 50},
	}

	for _, tt := range tests {
		p := Pagination{Page: tt.page, PerPage: tt.perPage}
		if got := p.offset(); got != tt.want {
			t.Fatalf("offset(page=%d, perPage=%d) = %d, want %d", tt.page, tt.perPage, got, tt.want)
		}
	}
}
