package chatlogs

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"
)

func encodeUTF16LE(t *testing.T, text string, withBOM bool) []byte {
	t.Helper()
	units := utf16.Encode([]rune(text))
	if withBOM {
		units = append([]uint16{0xFEFF}, units...)
	}
	out := make([]byte, 0, len(units)*2)
	for _, u := range units {
		var pair [2]byte
		binary.LittleEndian.PutUint16(pair[:], u)
		out = append(out, pair[:]...)
	}
	return out
}

func TestTailer_ReadsOnlyAppendedUTF16Lines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Alpha_20260301_113000.txt")
	if err := os.WriteFile(path, encodeUTF16LE(t, "old line one\r\nold line two\r\n", true), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tailer := &Tailer{Path: path}
	if err := tailer.Prime(); err != nil {
		t.Fatalf("Prime() error = %v", err)
	}
	if tailer.Encoding != "utf16le" {
		t.Fatalf("Encoding = %q, want utf16le", tailer.Encoding)
	}

	lines, err := tailer.ReadNewLines()
	if err != nil {
		t.Fatalf("ReadNewLines() error = %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no lines before append, got %v", lines)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.Write(encodeUTF16LE(t, "[ 2026.03.01 12:00:00 ] new α report\r\n", false)); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	lines, err = tailer.ReadNewLines()
	if err != nil {
		t.Fatalf("ReadNewLines() error = %v", err)
	}
	if len(lines) != 1 || lines[0] != "[ 2026.03.01 12:00:00 ] new α report" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestTailer_CarriesOddTrailingByte(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Alpha_20260301_113000.txt")
	full := encodeUTF16LE(t, "ab\r\n", true)
	if err := os.WriteFile(path, full[:0], 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tailer := &Tailer{Path: path, Encoding: "utf16le"}

	// First write ends mid code unit: the odd byte must be carried, not
	// decoded as a mangled character.
	half := 5
	if err := os.WriteFile(path, full[:half], 0o644); err != nil {
		t.Fatalf("write half: %v", err)
	}
	lines, err := tailer.ReadNewLines()
	if err != nil {
		t.Fatalf("ReadNewLines() error = %v", err)
	}
	if len(lines) != 1 || lines[0] != "a" {
		t.Fatalf("lines = %q, want decoded prefix %q", lines, "a")
	}
	if len(tailer.PendingBytes) != 1 {
		t.Fatalf("PendingBytes = %v, want one carried byte", tailer.PendingBytes)
	}

	if err := os.WriteFile(path, full, 0o644); err != nil {
		t.Fatalf("write full: %v", err)
	}
	lines, err = tailer.ReadNewLines()
	if err != nil {
		t.Fatalf("ReadNewLines() error = %v", err)
	}
	if len(lines) != 1 || lines[0] != "b" {
		t.Fatalf("lines = %q, want carried byte completing %q", lines, "b")
	}
}
