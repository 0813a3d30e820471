package checksum

import (
	"bytes"
	"testing"
)

func isStamp(line []byte) bool { return bytes.HasPrefix(line, []byte("generated:")) }

func TestSumExcept_IgnoresStampLine(t *testing.T) {
	a := []byte("---\ntype: x\ngenerated: 2026-01-01\n---\nbody\n")
	b := []byte("---\ntype: x\ngenerated: 2026-10-18\n---\nbody\n")
	if SumExcept(a, isStamp) != SumExcept(b, isStamp) {
		t.Error("digests should match when only the stamp differs")
	}
}

func TestSumExcept_OnlyFirstMatchSkipped(t *testing.T) {
	a := []byte("generated: 1\ngenerated: 2\n")
	b := []byte("generated: 9\ngenerated: 3\n")
	if SumExcept(a, isStamp) == SumExcept(b, isStamp) {
		t.Error("a second stamp-like line must still be compared")
	}
}

func TestSumExcept_CRLF(t *testing.T) {
	a := []byte("x\r\ny\r\n")
	b := []byte("x\ny\n")
	if SumExcept(a, isStamp) != SumExcept(b, isStamp) {
		t.Error("CRLF and LF content should digest equally")
	}
}
