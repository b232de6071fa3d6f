package errors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	err := Wrap(errWrapped, "Hello, Wrapped!")
	if err.Error() != "Hello, Wrapped!, err: wrapped error" {
		t.Fatalf("error mismatch: %+v", err)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, "ignored"); err != nil {
		t.Fatalf("wrap nil should stay nil, got %+v", err)
	}
	if err := Wrapf(nil, "ignored %d", 1); err != nil {
		t.Fatalf("wrapf nil should stay nil, got %+v", err)
	}
}

func TestWrapfAndIs(t *testing.T) {
	err := Wrapf(errWrapped, "attempt %d", 3)
	if err.Error() != "attempt 3, err: wrapped error" {
		t.Fatalf("error mismatch: %+v", err)
	}
	if !Is(err, errWrapped) {
		t.Fatalf("wrapped sentinel not matched by Is: %+v", err)
	}
	if !errors.Is(err, errWrapped) {
		t.Fatalf("wrapped sentinel not matched by errors.Is: %+v", err)
	}
}
