package analysis

import (
	"context"
	"image"
	"image/color"
	"testing"
)

func TestLaplacianVariance(t *testing.T) {
	tests := []struct {
		name      string
		img       image.Image
		wantBlur  bool
		wantExact *float64
	}{
		{"uniform gray", solidImage(300, 200, color.Gray{Y: 90}), true, new(float64)},
		{"checkerboard", checkerImage(256, 256), false, nil},
		{"nil image", nil, true, new(float64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := LaplacianVariance(tt.img)
			if tt.wantExact != nil && v != *tt.wantExact {
				t.Errorf("LaplacianVariance() = %v, want %v", v, *tt.wantExact)
			}
			if got := IsBlurry(tt.img, DefaultBlurThreshold); got != tt.wantBlur {
				t.Errorf("IsBlurry() = %v (variance %v), want %v", got, v, tt.wantBlur)
			}
		})
	}
}

func TestNewKeeper(t *testing.T) {
	tests := []struct {
		name    string
		policy  KeepPolicy
		decoder Decoder
		wantErr bool
	}{
		{"default", "", nil, false},
		{"first", KeepFirst, nil, false},
		{"sharpest", KeepSharpest, &fakeDecoder{}, false},
		{"sharpest without decoder", KeepSharpest, nil, true},
		{"unknown", KeepPolicy("largest"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKeeper(tt.policy, tt.decoder, 2, 0)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewKeeper() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFirstKeeper(t *testing.T) {
	keep, err := FirstKeeper{}.ChooseKeep(context.Background(), DuplicateGroup{"a", "b"})
	if err != nil || keep != "a" {
		t.Errorf("ChooseKeep() = %q, %v; want a", keep, err)
	}

	if _, err := (FirstKeeper{}).ChooseKeep(context.Background(), nil); err == nil {
		t.Error("expected error for empty group")
	}
}

func TestSharpestKeeper(t *testing.T) {
	blurry := solidImage(64, 64, color.Gray{Y: 120})
	sharp := checkerImage(64, 64)

	tests := []struct {
		name     string
		group    DuplicateGroup
		images   map[string]image.Image
		expected string
	}{
		{
			name:     "sharpest wins",
			group:    DuplicateGroup{"blurry", "sharp"},
			images:   map[string]image.Image{"blurry": blurry, "sharp": sharp},
			expected: "sharp",
		},
		{
			name:     "tie keeps first",
			group:    DuplicateGroup{"one", "two"},
			images:   map[string]image.Image{"one": blurry, "two": blurry},
			expected: "one",
		},
		{
			name:     "undecodable never wins",
			group:    DuplicateGroup{"missing", "blurry"},
			images:   map[string]image.Image{"blurry": blurry},
			expected: "blurry",
		},
		{
			name:     "all undecodable keeps first",
			group:    DuplicateGroup{"x", "y"},
			images:   map[string]image.Image{},
			expected: "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := &SharpestKeeper{Decoder: &fakeDecoder{images: tt.images}, Concurrency: 2}
			keep, err := k.ChooseKeep(context.Background(), tt.group)
			if err != nil {
				t.Fatalf("ChooseKeep failed: %v", err)
			}
			if keep != tt.expected {
				t.Errorf("ChooseKeep() = %q, want %q", keep, tt.expected)
			}
		})
	}
}

func TestSharpestKeeperAssess(t *testing.T) {
	k := &SharpestKeeper{
		Decoder: &fakeDecoder{images: map[string]image.Image{
			"flat":    solidImage(64, 64, color.Gray{Y: 90}),
			"checker": checkerImage(64, 64),
		}},
		Concurrency: 3,
	}

	got, err := k.Assess(context.Background(), DuplicateGroup{"checker", "missing", "flat"})
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}

	if got[0].URI != "checker" || got[0].Blurry || got[0].Sharpness <= DefaultBlurThreshold {
		t.Errorf("checker: %+v, want sharp", got[0])
	}
	if got[1].URI != "missing" || got[1].Sharpness != -1 || !got[1].Blurry {
		t.Errorf("missing: %+v, want sharpness -1 and blurry", got[1])
	}
	if got[2].URI != "flat" || !got[2].Blurry || got[2].Sharpness != 0 {
		t.Errorf("flat: %+v, want blurry with zero variance", got[2])
	}
}

func TestSharpestKeeperAssessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	k := &SharpestKeeper{Decoder: &fakeDecoder{}, Concurrency: 1}
	if _, err := k.Assess(ctx, DuplicateGroup{"a", "b"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
