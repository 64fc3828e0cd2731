package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Renarion/AI-for-mock-interview/internal/models"
)

func newStoredSession(id string) *models.Session {
	return &models.Session{
		ID:     id,
		UserID: "user-1",
		Tasks:  []models.SessionTask{{TaskID: 1, Question: "q1"}, {TaskID: 2, Question: "q2"}},
		Status: models.SessionActive,
	}
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	store := NewSessionStore(time.Hour)

	if err := store.Create(newStoredSession("s1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(newStoredSession("s1")); err == nil {
		t.Error("Expected error for duplicate session id")
	}

	got, ok := store.Get("s1")
	if !ok {
		t.Fatal("Expected session to be found")
	}

	// Get hands out a copy
	got.Tasks[0].Question = "changed"
	again, _ := store.Get("s1")
	if again.Tasks[0].Question != "q1" {
		t.Errorf("Expected stored session to be unchanged, got %q", again.Tasks[0].Question)
	}

	if _, ok := store.Get("missing"); ok {
		t.Error("Expected missing session to be absent")
	}
	if store.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", store.Count())
	}
}

func TestSessionStore_With(t *testing.T) {
	store := NewSessionStore(0)
	_ = store.Create(newStoredSession("s1"))

	err := store.With("missing", func(s *models.Session) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.With("s1", func(s *models.Session) error {
				s.Cursor++
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := store.Get("s1")
	if got.Cursor != 100 {
		t.Errorf("Expected serialized increments to reach 100, got %d", got.Cursor)
	}
}

func TestSessionStore_IdleExpiry(t *testing.T) {
	store := NewSessionStore(50 * time.Millisecond)
	_ = store.Create(newStoredSession("s1"))

	time.Sleep(120 * time.Millisecond)

	if _, ok := store.Get("s1"); ok {
		t.Error("Expected idle session to expire")
	}
}

func TestSessionStore_DeleteAndIDs(t *testing.T) {
	store := NewSessionStore(time.Hour)
	_ = store.Create(newStoredSession("a"))
	_ = store.Create(newStoredSession("b"))

	if ids := store.IDs(); len(ids) != 2 {
		t.Errorf("Expected 2 ids, got %v", ids)
	}

	store.Delete("a")
	if _, ok := store.Get("a"); ok {
		t.Error("Expected deleted session to be gone")
	}
}
