package renderer

import "testing"

func TestFormat(t *testing.T) {
	cases := map[string]string{
		"out/diary.pdf": "pdf",
		"out/diary.PNG": "png",
		"diary.png":     "png",
		"diary":         "pdf",
	}
	for in, want := range cases {
		if got := Format(in); got != want {
			t.Fatalf("Format(%q) = %s, want %s", in, got, want)
		}
	}
}
