package core

import (
	"errors"
	"testing"
)

func TestPriority_StringAndValid(t *testing.T) {
	cases := []struct {
		p     Priority
		str   string
		valid bool
	}{
		{PriorityLow, "low", true},
		{PriorityNormal, "normal", true},
		{PriorityHigh, "high", true},
		{Priority(-1), "priority(-1)", false},
		{Priority(3), "priority(3)", false},
	}
	for _, c := range cases {
		if got := c.p.String(); got != c.str {
			t.Errorf("Priority(%d).String() = %q, want %q", int(c.p), got, c.str)
		}
		if got := c.p.Valid(); got != c.valid {
			t.Errorf("Priority(%d).Valid() = %v, want %v", int(c.p), got, c.valid)
		}
	}
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]Priority{
		"low": PriorityLow, "Normal": PriorityNormal, " HIGH ": PriorityHigh, "": PriorityNormal,
	} {
		got, err := ParsePriority(in)
		if err != nil || got != want {
			t.Errorf("ParsePriority(%q) = (%v, %v), want (%v, nil)", in, got, err, want)
		}
	}

	if _, err := ParsePriority("urgent"); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("ParsePriority(urgent) error = %v, want ErrInvalidPriority", err)
	}
}

func TestTaskFunc_Execute(t *testing.T) {
	want := errors.New("boom")
	called := false
	task := TaskFunc(func() error {
		called = true
		return want
	})

	if err := task.Execute(); err != want {
		t.Errorf("Execute() = %v, want %v", err, want)
	}
	if !called {
		t.Error("wrapped function was not called")
	}
}

func TestPanicError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &PanicError{Value: inner}
	if !errors.Is(err, inner) {
		t.Error("errors.Is(PanicError{inner}, inner) = false, want true")
	}
	if (&PanicError{Value: "text"}).Unwrap() != nil {
		t.Error("Unwrap() of a non-error panic value should be nil")
	}
	if got := (&PanicError{Value: 7}).Error(); got != "task panicked: 7" {
		t.Errorf("Error() = %q", got)
	}
}
