package watchlist

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestMemoryStore_AddIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.Add(ctx, "x")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	second, err := s.Add(ctx, "x")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !first || second {
		t.Errorf("Add(x), Add(x) = (%v, %v), want (true, false)", first, second)
	}
}

func TestMemoryStore_RemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("x")

	first, _ := s.Remove(ctx, "x")
	second, _ := s.Remove(ctx, "x")
	if !first || second {
		t.Errorf("Remove(x), Remove(x) = (%v, %v), want (true, false)", first, second)
	}
}

func TestMemoryStore_ListOrderAndCase(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, n := range []string{"bob", "Alice", "alice", "carol"} {
		if _, err := s.Add(ctx, n); err != nil {
			t.Fatalf("Add(%s) error = %v", n, err)
		}
	}
	if _, err := s.Remove(ctx, "alice"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"bob", "Alice", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestMemoryStore_ListEmptyIsNotError(t *testing.T) {
	got, err := NewMemoryStore().List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("List() = %#v, want empty non-nil slice", got)
	}
}

func TestMemoryStore_CancelledContextIsStorageError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore().List(ctx)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("List() error = %v, want ErrStorage", err)
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "list" || se.Backend != "memory" {
		t.Errorf("StorageError = %+v", se)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped context.Canceled, got %v", err)
	}
}

func TestWrapStorageNil(t *testing.T) {
	if err := WrapStorage("pg", "add", nil); err != nil {
		t.Errorf("WrapStorage(nil) = %v, want nil", err)
	}
}
