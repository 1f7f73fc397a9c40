package services

import "testing"

func TestClampMiniMaxDuration(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 6},
		{3, 6},
		{6, 6},
		{7, 10},
		{10, 10},
		{15, 10},
	}

	for _, tt := range tests {
		if got := clampMiniMaxDuration(tt.in); got != tt.want {
			t.Errorf("clampMiniMaxDuration(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestImageMimeType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"assets/p1_screen.png", "image/png"},
		{"shot.JPG", "image/jpeg"},
		{"shot.jpeg", "image/jpeg"},
		{"shot.webp", "image/webp"},
		{"no_extension", "image/png"},
	}

	for _, tt := range tests {
		if got := imageMimeType(tt.path); got != tt.want {
			t.Errorf("imageMimeType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
