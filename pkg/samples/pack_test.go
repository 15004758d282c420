package samples

import "testing"

func TestPackLocators(t *testing.T) {
	tests := []struct {
		name string
		pack Pack
		base string
		want string
	}{
		{"absolute", Pack{URL: "https://example.com/sounds/classic", Ext: "mp3"}, "http://ignored", "https://example.com/sounds/classic/a4.mp3"},
		{"relative with base", Pack{URL: "/sounds/classic/", Ext: ".mp3"}, "http://localhost:8080", "http://localhost:8080/sounds/classic/a4.mp3"},
		{"local dir", Pack{URL: "/tmp/piano", Ext: ".wav"}, "", "/tmp/piano/a4.wav"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.pack.Keys = []string{"a4"}
			locs, err := tt.pack.Locators(tt.base)
			if err != nil {
				t.Fatalf("Locators failed: %v", err)
			}
			if got := locs["a4"]; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestPackNormalize(t *testing.T) {
	p := Pack{URL: "x", Ext: "ogg"}.Normalize()
	if p.URL != "x/" || p.Ext != ".ogg" {
		t.Errorf("unexpected normalize result %+v", p)
	}
	p = Pack{}.Normalize()
	if p.URL != "" || p.Ext != "" {
		t.Errorf("empty pack should stay empty, got %+v", p)
	}
}
