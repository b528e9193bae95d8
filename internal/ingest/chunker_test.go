package ingest

import (
	"strings"
	"testing"
)

func TestChunkerOverlappingWindows(t *testing.T) {
	c, err := NewChunker(800, 200)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	text := strings.Repeat("A", 1000)
	spans := c.Chunk(text)
	if len(spans) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(spans))
	}
	if spans[0].Start != 0 || spans[0].End != 800 {
		t.Errorf("chunk 0 offsets = (%d,%d), want (0,800)", spans[0].Start, spans[0].End)
	}
	if spans[1].Start != 600 || spans[1].End != 1000 {
		t.Errorf("chunk 1 offsets = (%d,%d), want (600,1000)", spans[1].Start, spans[1].End)
	}
	if spans[0].Text != strings.Repeat("A", 800) {
		t.Errorf("chunk 0 text length = %d, want 800", len(spans[0].Text))
	}
}

func TestChunkerEmptyText(t *testing.T) {
	c, err := NewChunker(800, 200)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	if spans := c.Chunk(""); len(spans) != 0 {
		t.Errorf("empty text should yield no chunks, got %d", len(spans))
	}
}

func TestChunkerWhitespaceOnlyText(t *testing.T) {
	c, err := NewChunker(10, 2)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	if spans := c.Chunk("   \n\t   "); len(spans) != 0 {
		t.Errorf("whitespace-only text should yield no chunks, got %d", len(spans))
	}
}

func TestChunkerShortText(t *testing.T) {
	c, err := NewChunker(800, 200)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	spans := c.Chunk("hello world")
	if len(spans) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(spans))
	}
	if spans[0].Start != 0 || spans[0].End != 11 {
		t.Errorf("offsets = (%d,%d), want (0,11)", spans[0].Start, spans[0].End)
	}
	if spans[0].Text != "hello world" {
		t.Errorf("text = %q", spans[0].Text)
	}
}

func TestChunkerTrimsWhitespace(t *testing.T) {
	c, err := NewChunker(10, 0)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	spans := c.Chunk("  abcdef  ")
	if len(spans) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(spans))
	}
	if spans[0].Text != "abcdef" {
		t.Errorf("text = %q, want trimmed %q", spans[0].Text, "abcdef")
	}
	// Offsets stay at the window bounds, not the trimmed text.
	if spans[0].Start != 0 || spans[0].End != 10 {
		t.Errorf("offsets = (%d,%d), want (0,10)", spans[0].Start, spans[0].End)
	}
}

func TestChunkerOrderingMonotonic(t *testing.T) {
	c, err := NewChunker(50, 10)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 30)
	spans := c.Chunk(text)
	if len(spans) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(spans))
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].Start <= spans[i-1].Start {
			t.Errorf("chunk %d start %d not after previous start %d", i, spans[i].Start, spans[i-1].Start)
		}
		if spans[i].End < spans[i-1].End {
			t.Errorf("chunk %d end %d before previous end %d", i, spans[i].End, spans[i-1].End)
		}
		if spans[i].Start != spans[i-1].Start+40 {
			t.Errorf("chunk %d start %d, want step of chunkSize-overlap from %d", i, spans[i].Start, spans[i-1].Start)
		}
	}
	if spans[len(spans)-1].End != len(text) {
		t.Errorf("last chunk end = %d, want text length %d", spans[len(spans)-1].End, len(text))
	}
}

func TestNewChunkerRejectsBadParams(t *testing.T) {
	cases := []struct {
		name      string
		size, ovl int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewChunker(tc.size, tc.ovl); err == nil {
				t.Errorf("NewChunker(%d, %d) should fail", tc.size, tc.ovl)
			}
		})
	}
}
