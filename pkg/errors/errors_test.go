package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(ErrCodeConfiguration, "shape %q: degenerate rectangle", "a"),
			want: `CONFIGURATION: shape "a": degenerate rectangle`,
		},
		{
			name: "with cause",
			err:  Wrap(ErrCodeInvalidFormat, errors.New("unexpected EOF"), "decode scene %s", "bus.toml"),
			want: "INVALID_FORMAT: decode scene bus.toml: unexpected EOF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(ErrCodeInvalidPath, fs.ErrNotExist, "read %s", "scene.toml")

	if errors.Unwrap(err) != fs.ErrNotExist {
		t.Errorf("Unwrap() = %v, want fs.ErrNotExist", errors.Unwrap(err))
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is(err, fs.ErrNotExist) = false, want true")
	}
}

func TestCodes(t *testing.T) {
	resolution := New(ErrCodeResolution, "connector %q: shape %q has no pin of class %d", "c1", "b", 2)
	wrapped := Wrap(ErrCodeUnroutable, resolution, "connector %q", "c1")
	foreign := fmt.Errorf("commit: %w", resolution)

	tests := []struct {
		name string
		err  error
		code Code
		is   bool
		get  Code
	}{
		{"direct", resolution, ErrCodeResolution, true, ErrCodeResolution},
		{"other code", resolution, ErrCodeUnroutable, false, ErrCodeResolution},
		{"outermost code wins", wrapped, ErrCodeUnroutable, true, ErrCodeUnroutable},
		{"through fmt wrapping", foreign, ErrCodeResolution, true, ErrCodeResolution},
		{"plain error", errors.New("boom"), ErrCodeInternal, false, ""},
		{"nil", nil, ErrCodeInternal, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.is {
				t.Errorf("Is(%v) = %v, want %v", tt.code, got, tt.is)
			}
			if got := GetCode(tt.err); got != tt.get {
				t.Errorf("GetCode() = %q, want %q", got, tt.get)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"coded", New(ErrCodeSessionNotFound, "session %s expired", "s1"), "session s1 expired"},
		{"coded with cause", Wrap(ErrCodeInternal, errors.New("disk full"), "write cache"), "write cache"},
		{"plain", errors.New("plain error"), "plain error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAs(t *testing.T) {
	err := fmt.Errorf("step 2: %w", New(ErrCodeNotFound, "pin %q", "p1"))

	var e *Error
	if !As(err, &e) {
		t.Fatal("As() = false, want true")
	}
	if e.Code != ErrCodeNotFound {
		t.Errorf("Code = %v, want %v", e.Code, ErrCodeNotFound)
	}

	var pe *fs.PathError
	if As(err, &pe) {
		t.Error("As() matched an unrelated type")
	}
}
