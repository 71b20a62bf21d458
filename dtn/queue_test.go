package dtn

import (
	"bytes"
	"testing"
)

func TestEnqueuePeekPopFIFO(t *testing.T) {
	q := NewQueue()
	if _, ok := q.Peek(); ok {
		t.Fatal("expected empty queue to have no head")
	}
	if !q.Enqueue("alice", []byte("one")) {
		t.Fatal("enqueue into empty queue should succeed")
	}
	if !q.Enqueue("bob", []byte("two")) {
		t.Fatal("enqueue should succeed while under capacity")
	}
	head, ok := q.Peek()
	if !ok || head.Dest != "alice" || !bytes.Equal(head.Payload, []byte("one")) {
		t.Fatalf("unexpected head: %+v", head)
	}
	if err := q.PopFront(); err != nil {
		t.Fatal(err)
	}
	head2, _ := q.Peek()
	if head2.Dest != "bob" {
		t.Fatalf("expected bob at head after pop, got %q", head2.Dest)
	}
	if q.Len() != 1 {
		t.Fatalf("expected length 1, got %d", q.Len())
	}
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	q := NewQueue()
	for i := 0; i < MaxItems; i++ {
		if !q.Enqueue("dest", []byte{byte(i)}) {
			t.Fatalf("unexpected rejection before queue full at i=%d", i)
		}
	}
	if q.Enqueue("overflow", []byte("x")) {
		t.Fatal("expected enqueue into full queue to fail")
	}
}

func TestPopFrontEmptyErrors(t *testing.T) {
	q := NewQueue()
	if err := q.PopFront(); err == nil {
		t.Fatal("expected error popping an empty queue")
	}
}

func TestEnqueueCopiesPayload(t *testing.T) {
	q := NewQueue()
	payload := []byte("mutable")
	q.Enqueue("dest", payload)
	payload[0] = 'X'
	head, _ := q.Peek()
	if head.Payload[0] == 'X' {
		t.Fatal("queue must not alias the caller's payload slice")
	}
}
