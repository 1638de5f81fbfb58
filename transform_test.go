package telerelay

import "testing"

func TestTransformer_Modify(t *testing.T) {
	tests := []struct {
		name       string
		mapping    Mapping
		text       string
		want       string
		wantActive bool
		wantShift  int
	}{
		{
			name: "prefix and suffix",
			mapping: Mapping{
				ModificationEnabled: true,
				PrefixEnabled:       true,
				SuffixEnabled:       true,
				Prefix:              "A",
				Suffix:              "B",
			},
			text:       "hello",
			want:       "A\nhello\nB",
			wantActive: true,
			wantShift:  2,
		},
		{
			name: "prefix only",
			mapping: Mapping{
				ModificationEnabled: true,
				PrefixEnabled:       true,
				Prefix:              "🚀 Signal",
				Suffix:              "ignored",
			},
			text:       "hello",
			want:       "🚀 Signal\nhello",
			wantActive: true,
			wantShift:  10,
		},
		{
			name: "suffix only",
			mapping: Mapping{
				ModificationEnabled: true,
				SuffixEnabled:       true,
				Suffix:              "-- via relay",
			},
			text:       "hello",
			want:       "hello\n-- via relay",
			wantActive: true,
		},
		{
			name: "modification disabled",
			mapping: Mapping{
				PrefixEnabled: true,
				SuffixEnabled: true,
				Prefix:        "A",
				Suffix:        "B",
			},
			text: "hello",
			want: "hello",
		},
		{
			name: "enabled but empty pieces",
			mapping: Mapping{
				ModificationEnabled: true,
				PrefixEnabled:       true,
				SuffixEnabled:       true,
			},
			text: "hello",
			want: "hello",
		},
		{
			name: "empty text",
			mapping: Mapping{
				ModificationEnabled: true,
				PrefixEnabled:       true,
				Prefix:              "A",
			},
			text:       "",
			want:       "A\n",
			wantActive: true,
			wantShift:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransformer(tt.mapping)
			if got := tr.Modify(tt.text); got != tt.want {
				t.Errorf("Modify(%q) = %q, want %q", tt.text, got, tt.want)
			}
			if got := tr.Active(); got != tt.wantActive {
				t.Errorf("Active() = %v, want %v", got, tt.wantActive)
			}
			if got := utf16Len(tr.leading()); got != tt.wantShift {
				t.Errorf("utf16Len(leading()) = %d, want %d", got, tt.wantShift)
			}
		})
	}
}

func TestTransformer_NotIdempotent(t *testing.T) {
	tr := NewTransformer(Mapping{
		ModificationEnabled: true,
		PrefixEnabled:       true,
		Prefix:              "A",
	})

	if got := tr.Modify(tr.Modify("x")); got != "A\nA\nx" {
		t.Errorf("Modify(Modify(x)) = %q, want prefix applied twice", got)
	}
}
