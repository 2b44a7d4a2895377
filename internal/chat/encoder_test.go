package chat

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEncodeText_TrimsAndValidates(t *testing.T) {
	d, err := EncodeText("  hola  ")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if d.Variant != VariantText || d.Text != "hola" {
		t.Fatalf("unexpected draft: %+v", d)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEncodeText_RejectsEmpty(t *testing.T) {
	if _, err := EncodeText("   "); !errors.Is(err, ErrEmptyDraft) {
		t.Fatalf("expected ErrEmptyDraft, got %v", err)
	}
}

func TestEncodeText_RejectsOversized(t *testing.T) {
	if _, err := EncodeText(strings.Repeat("a", MaxTextLen+1)); !errors.Is(err, ErrTextTooLong) {
		t.Fatalf("expected ErrTextTooLong, got %v", err)
	}
}

func TestEncodeAttachment_RequiresUploadedResource(t *testing.T) {
	// no stored resource: must be rejected before any network call
	if _, err := EncodeAttachment(VariantImage, "", "photo.png"); !errors.Is(err, ErrMissingResource) {
		t.Fatalf("expected ErrMissingResource, got %v", err)
	}
}

func TestEncodeAttachment_LabelDefaultsByExtension(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/u/abc.png", "Image"},
		{"https://cdn.example.com/u/report.pdf", "PDF document"},
		{"https://cdn.example.com/u/export.csv", "Spreadsheet"},
		{"https://cdn.example.com/u/blob.bin", "File"},
	}
	for _, tc := range cases {
		d, err := EncodeAttachment(VariantFile, tc.url, "")
		if err != nil {
			t.Fatalf("encode %s: %v", tc.url, err)
		}
		if d.Label != tc.want {
			t.Fatalf("url %s: got label %q want %q", tc.url, d.Label, tc.want)
		}
	}
}

func TestEncodeAttachment_KeepsOriginalName(t *testing.T) {
	d, err := EncodeAttachment(VariantFile, "https://cdn.example.com/u/xyz.pdf", "Q3 forecast.pdf")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if d.Label != "Q3 forecast.pdf" {
		t.Fatalf("got label %q", d.Label)
	}
}

func TestValidate_RejectsAmbiguousDraft(t *testing.T) {
	d := Draft{Variant: VariantText, Text: "hi", URL: "https://cdn.example.com/u/a.png"}
	if err := d.Validate(); !errors.Is(err, ErrAmbiguousDraft) {
		t.Fatalf("expected ErrAmbiguousDraft, got %v", err)
	}
}

func TestValidate_RejectsUnknownVariant(t *testing.T) {
	d := Draft{Variant: "sticker", Text: "hi"}
	if err := d.Validate(); !errors.Is(err, ErrBadVariant) {
		t.Fatalf("expected ErrBadVariant, got %v", err)
	}
}

func TestNewProvisional_ValidatesDraft(t *testing.T) {
	if _, err := NewProvisional(1, 2, "Bo", Draft{Variant: VariantText}); !errors.Is(err, ErrEmptyDraft) {
		t.Fatalf("expected ErrEmptyDraft, got %v", err)
	}
}

func TestPreviewText(t *testing.T) {
	img := Message{Variant: VariantImage, Label: "photo.png"}
	if got := PreviewText(img); got != "[image] photo.png" {
		t.Fatalf("got %q", got)
	}
	long := Message{Variant: VariantText, Text: strings.Repeat("x", 200)}
	if got := PreviewText(long); len(got) != 80 {
		t.Fatalf("expected preview truncated to 80, got %d", len(got))
	}
}

func TestPreviewText_TruncatesOnRuneBoundary(t *testing.T) {
	// 30 three-byte runes: 90 bytes, and byte 80 falls inside a rune
	long := Message{Variant: VariantText, Text: strings.Repeat("日", 30)}
	got := PreviewText(long)
	if !utf8.ValidString(got) {
		t.Fatalf("preview is not valid UTF-8: %q", got)
	}
	if got != strings.Repeat("日", 26) {
		t.Fatalf("unexpected truncation: %q (%d bytes)", got, len(got))
	}
}
