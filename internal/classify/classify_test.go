package classify

import (
	"testing"
)

var (
	pngHead = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	mp3Head = []byte("ID3\x03\x00\x00\x00\x00\x00\x00audio-frames")
	exeHead = append([]byte("MZ\x90\x00\x03\x00\x00\x00\x04\x00\x00\x00\xff\xff"), make([]byte, 64)...)
	gifHead = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00")
)

func TestClassifyAccepts(t *testing.T) {
	cases := []struct {
		name     string
		head     []byte
		declared string
		wantExt  string
		wantSrc  Source
	}{
		{"png signature", pngHead, "photo.png", "png", SourceSignature},
		{"signature overrides declared", pngHead, "photo.jpg", "png", SourceSignature},
		{"no extension uses signature", gifHead, "upload", "gif", SourceSignature},
		{"mp3 signature", mp3Head, "song.mp3", "mp3", SourceSignature},
		{"json fallback", []byte(`{"hello":"world"}`), "example.json", "json", SourceExtension},
		{"xml fallback", []byte(`<?xml version="1.0"?><a/>`), "feed.XML", "xml", SourceExtension},
		{"rss fallback", []byte(`<rss version="2.0"></rss>`), "feed.rss", "rss", SourceExtension},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify(tc.head, tc.declared)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if got.Extension != tc.wantExt {
				t.Fatalf("expected extension %q, got %q", tc.wantExt, got.Extension)
			}
			if got.Source != tc.wantSrc {
				t.Fatalf("expected source %q, got %q", tc.wantSrc, got.Source)
			}
		})
	}
}

func TestClassifyRejects(t *testing.T) {
	cases := []struct {
		name     string
		head     []byte
		declared string
	}{
		{"executable disguised as mp3", exeHead, "fake.mp3"},
		{"executable extension", exeHead, "setup.exe"},
		{"html extension", []byte("<html></html>"), "index.html"},
		{"unknown text", []byte("just some words"), "notes.bin"},
		{"unknown bytes without extension", []byte{0x01, 0x02, 0x03}, "blob"},
		{"empty content", nil, "empty.png"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Classify(tc.head, tc.declared)
			if err == nil {
				t.Fatal("expected rejection")
			}
			if !IsReject(err) {
				t.Fatalf("expected *RejectError, got %T", err)
			}
		})
	}
}

func TestDeclaredExtension(t *testing.T) {
	cases := map[string]string{
		"a.JSON":       "json",
		"archive.tar":  "tar",
		"noext":        "",
		" spaced.png":  "png",
		"dir/file.MP3": "mp3",
	}
	for in, want := range cases {
		if got := DeclaredExtension(in); got != want {
			t.Fatalf("DeclaredExtension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtensionForContentType(t *testing.T) {
	cases := map[string]string{
		"application/json":                "json",
		"application/json; charset=utf-8": "json",
		"image/png":                       "png",
		"image/jpeg":                      "jpg",
		"audio/mpeg":                      "mp3",
		"application/rss+xml":             "rss",
		"text/plain; charset=utf-8":       "txt",
		"application/x-tar":               "tar",
		"":                                "bin",
		"garbage":                         "bin",
		"text/../../etc":                  "bin",
	}
	for in, want := range cases {
		if got := ExtensionForContentType(in); got != want {
			t.Fatalf("ExtensionForContentType(%q) = %q, want %q", in, got, want)
		}
	}
}
