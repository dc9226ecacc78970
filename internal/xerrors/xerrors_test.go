package xerrors

import (
	"errors"
	"io/fs"
	"runtime"
	"strings"
	"testing"
)

var errSentinel = errors.New("sentinel")

func stackContains(pcs []uintptr, substr string) bool {
	frames := runtime.CallersFrames(pcs)
	for {
		fr, more := frames.Next()
		if strings.Contains(fr.Function, substr) {
			return true
		}
		if !more {
			return false
		}
	}
}

func TestNew_MessageAndStack(t *testing.T) {
	err := New("session store unreachable")
	if err.Error() != "session store unreachable" {
		t.Fatalf("Error() = %q", err.Error())
	}
	var hs interface{ StackPCs() []uintptr }
	if !errors.As(err, &hs) {
		t.Fatal("New error should expose StackPCs")
	}
	if !stackContains(hs.StackPCs(), "TestNew_MessageAndStack") {
		t.Fatal("stack should contain the calling test")
	}
}

func TestNewf_WrapsVerb(t *testing.T) {
	err := Newf("lookup user %s: %w", "U1", errSentinel)
	if !errors.Is(err, errSentinel) {
		t.Fatal("Newf should honor %w")
	}
	if err.Error() != "lookup user U1: sentinel" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, "x") != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "x %d", 1) != nil {
		t.Fatal("Wrapf(nil) should be nil")
	}
	if EnsureTrace(nil) != nil {
		t.Fatal("EnsureTrace(nil) should be nil")
	}
	if WithStack(nil) != nil {
		t.Fatal("WithStack(nil) should be nil")
	}
}

func TestWrap_PrefixAndUnwrap(t *testing.T) {
	err := Wrap(fs.ErrNotExist, "open upload dir")
	if err.Error() != "open upload dir: file does not exist" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("Wrap should keep the chain")
	}
	var hp interface{ PC() uintptr }
	if !errors.As(err, &hp) || hp.PC() == 0 {
		t.Fatal("Wrap should record a caller PC")
	}
}

func TestWrapf_Formats(t *testing.T) {
	err := Wrapf(errSentinel, "save session %s", "abc")
	if err.Error() != "save session abc: sentinel" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestEnsureTrace_AddsOnce(t *testing.T) {
	first := EnsureTrace(errSentinel)
	var hs interface{ StackPCs() []uintptr }
	if !errors.As(first, &hs) {
		t.Fatal("EnsureTrace should add a stack")
	}
	second := EnsureTrace(first)
	if second != first {
		t.Fatal("EnsureTrace should not re-wrap an error that already has a stack")
	}
	wrapped := Wrap(first, "outer")
	if EnsureTrace(wrapped) != wrapped {
		t.Fatal("stack anywhere in the chain should be detected")
	}
}
