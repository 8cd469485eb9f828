package model

import "testing"

func TestPermissionSatisfies(t *testing.T) {
	tests := []struct {
		name     string
		held     Permission
		required Permission
		want     bool
	}{
		{
			name:     "exact match",
			held:     PermissionSellProducts,
			required: PermissionSellProducts,
			want:     true,
		},
		{
			name:     "superset holds required bit",
			held:     PermissionManageUsers | PermissionSellProducts,
			required: PermissionSellProducts,
			want:     true,
		},
		{
			name:     "missing bit",
			held:     PermissionSellProducts,
			required: PermissionManageProducts,
			want:     false,
		},
		{
			name:     "required set is partially held",
			held:     PermissionSellProducts,
			required: PermissionSellProducts | PermissionManageProducts,
			want:     false,
		},
		{
			name:     "empty required set always satisfied",
			held:     0,
			required: 0,
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.held.Satisfies(tt.required); got != tt.want {
				t.Fatalf("Satisfies(%b, %b) = %v, want %v", tt.held, tt.required, got, tt.want)
			}
		})
	}
}
