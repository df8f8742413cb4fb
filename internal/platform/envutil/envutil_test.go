package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackToDefaultWhenUnsetOrInvalid(t *testing.T) {
	t.Setenv("NV_TEST_INT", "")
	if got := Int("NV_TEST_INT", 7); got != 7 {
		t.Fatalf("Int(unset) = %d, want 7", got)
	}
	t.Setenv("NV_TEST_INT", "not-a-number")
	if got := Int("NV_TEST_INT", 7); got != 7 {
		t.Fatalf("Int(invalid) = %d, want 7", got)
	}
	t.Setenv("NV_TEST_INT", "42")
	if got := Int("NV_TEST_INT", 7); got != 42 {
		t.Fatalf("Int(valid) = %d, want 42", got)
	}
}

func TestFloatParsesOrFallsBack(t *testing.T) {
	t.Setenv("NV_TEST_FLOAT", "3.5")
	if got := Float("NV_TEST_FLOAT", 1.0); got != 3.5 {
		t.Fatalf("Float = %v, want 3.5", got)
	}
	t.Setenv("NV_TEST_FLOAT", "bogus")
	if got := Float("NV_TEST_FLOAT", 1.0); got != 1.0 {
		t.Fatalf("Float(invalid) = %v, want default 1.0", got)
	}
}

func TestBoolParsesOrFallsBack(t *testing.T) {
	t.Setenv("NV_TEST_BOOL", "true")
	if got := Bool("NV_TEST_BOOL", false); got != true {
		t.Fatal("Bool(true) = false, want true")
	}
	t.Setenv("NV_TEST_BOOL", "")
	if got := Bool("NV_TEST_BOOL", true); got != true {
		t.Fatal("Bool(unset) did not fall back to default")
	}
}

func TestDurationParsesOrFallsBack(t *testing.T) {
	t.Setenv("NV_TEST_DUR", "5s")
	if got := Duration("NV_TEST_DUR", time.Minute); got != 5*time.Second {
		t.Fatalf("Duration = %v, want 5s", got)
	}
	t.Setenv("NV_TEST_DUR", "garbage")
	if got := Duration("NV_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("Duration(invalid) = %v, want default 1m", got)
	}
}

func TestStringTrimsAndFallsBack(t *testing.T) {
	t.Setenv("NV_TEST_STR", "  hello  ")
	if got := String("NV_TEST_STR", "def"); got != "hello" {
		t.Fatalf("String = %q, want trimmed %q", got, "hello")
	}
	t.Setenv("NV_TEST_STR", "")
	if got := String("NV_TEST_STR", "def"); got != "def" {
		t.Fatalf("String(unset) = %q, want default %q", got, "def")
	}
}
