package extensions

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type counter struct{ n int }

func TestStore_PutGetRemove(t *testing.T) {
	s := NewStore()
	s.Put("a", 1)

	v, ok := s.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}
	if !s.Remove("a") {
		t.Error("expected Remove to report presence")
	}
	if s.Remove("a") {
		t.Error("expected second Remove to report absence")
	}
	if _, ok := s.Get("a"); ok {
		t.Error("value still present after Remove")
	}
}

func TestStore_GetOrCreateCallsFactoryOnce(t *testing.T) {
	s := NewStore()
	var calls atomic.Int32
	factory := func() (any, error) {
		calls.Add(1)
		return &counter{}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.GetOrCreate("c", factory); err != nil {
				t.Errorf("GetOrCreate: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("factory called %d times, want 1", got)
	}
}

func TestStore_GetOrCreateFactoryErrorCachesNothing(t *testing.T) {
	s := NewStore()
	boom := errors.New("boom")

	if _, err := s.GetOrCreate("x", func() (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if _, ok := s.Get("x"); ok {
		t.Error("failed factory result was cached")
	}
	if _, err := s.GetOrCreate("y", nil); !errors.Is(err, ErrNilFactory) {
		t.Errorf("err = %v, want ErrNilFactory", err)
	}
}

func TestGetAs(t *testing.T) {
	s := NewStore()
	s.Put("c", &counter{n: 3})

	c, ok, err := GetAs[*counter](s, "c")
	if err != nil || !ok || c.n != 3 {
		t.Fatalf("GetAs = %v, %v, %v", c, ok, err)
	}

	_, ok, err = GetAs[string](s, "c")
	var typeErr *ExtensionTypeError
	if !ok || !errors.As(err, &typeErr) {
		t.Fatalf("expected ExtensionTypeError, got %v", err)
	}
	if typeErr.Expected != "string" || typeErr.Actual != "*extensions.counter" {
		t.Errorf("unexpected type error: %+v", typeErr)
	}

	_, ok, err = GetAs[string](s, "missing")
	if ok || err != nil {
		t.Errorf("missing key: ok=%v err=%v", ok, err)
	}
}

func TestGetOrCreateAs(t *testing.T) {
	s := NewStore()

	c, err := GetOrCreateAs(s, "c", func() (*counter, error) { return &counter{n: 1}, nil })
	if err != nil {
		t.Fatal(err)
	}
	c.n++

	again, err := GetOrCreateAs(s, "c", func() (*counter, error) { return &counter{}, nil })
	if err != nil {
		t.Fatal(err)
	}
	if again.n != 2 {
		t.Errorf("expected cached value, got n=%d", again.n)
	}

	if _, err := GetOrCreateAs(s, "c", func() (int, error) { return 0, nil }); err == nil {
		t.Error("expected type mismatch error")
	}
}

func TestMustGetAs(t *testing.T) {
	s := NewStore()
	if _, err := MustGetAs[int](s, "n"); !errors.Is(err, ErrExtensionNotFound) {
		t.Errorf("err = %v, want ErrExtensionNotFound", err)
	}
	s.Put("n", 7)
	n, err := MustGetAs[int](s, "n")
	if err != nil || n != 7 {
		t.Errorf("MustGetAs = %d, %v", n, err)
	}
}

func TestStore_Names(t *testing.T) {
	s := NewStore()
	s.Put("b", 1)
	s.Put("a", 2)
	names := s.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v", names)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d", s.Len())
	}
}
