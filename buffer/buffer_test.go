package buffer

import "testing"

func TestSliceBuffer(t *testing.T) {
	var _ Buffer = (*SliceBuffer)(nil)

	b := NewSliceBuffer()
	if got := b.MarkPos(); got != 0 {
		t.Errorf("MarkPos() = %d, want 0 before marking", got)
	}
	if got := b.BufferPos(); got != 1 {
		t.Errorf("BufferPos() = %d, want 1", got)
	}

	b.Mark(7)
	if got := b.MarkPos(); got != 7 {
		t.Errorf("MarkPos() = %d, want 7", got)
	}
	b.Unmark()
	if got := b.MarkPos(); got != 0 {
		t.Errorf("MarkPos() = %d, want 0 after Unmark", got)
	}

	b.SetBufferPos(42)
	if got := b.BufferPos(); got != 42 {
		t.Errorf("BufferPos() = %d, want 42", got)
	}
}
