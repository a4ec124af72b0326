package engine

import (
	"testing"
	"time"
)

func TestBarrier_TripsWhenAllPartiesArrive(t *testing.T) {
	b := newBarrier(2)

	done := make(chan bool, 2)
	go func() {
		wait, tripped := b.arrive()
		<-wait
		done <- tripped()
	}()
	go func() {
		wait, tripped := b.arrive()
		<-wait
		done <- tripped()
	}()

	for i := 0; i < 2; i++ {
		select {
		case ok := <-done:
			if !ok {
				t.Fatalf("expected a clean trip")
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for barrier to trip")
		}
	}
}

func TestBarrier_ResetWakesWaitersWithoutTrip(t *testing.T) {
	b := newBarrier(2) // requires 2 parties; only 1 arrives

	wait, tripped := b.arrive()
	resultCh := make(chan bool, 1)
	go func() {
		<-wait
		resultCh <- tripped()
	}()

	// Give the goroutine a moment to block in arrive's wait.
	time.Sleep(10 * time.Millisecond)
	b.reset()

	select {
	case ok := <-resultCh:
		if ok {
			t.Fatalf("expected tripped() == false after a reset")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for reset to wake the waiter")
	}
}

func TestBarrier_LeaveWithdrawsUnconsumedArrival(t *testing.T) {
	b := newBarrier(2)

	wait, _ := b.arrive()
	b.leave(wait)

	// A fresh 2-party round should still require 2 new arrivals to trip,
	// proving the withdrawn arrival didn't count toward this round.
	done := make(chan bool, 2)
	go func() {
		w, tr := b.arrive()
		<-w
		done <- tr()
	}()
	go func() {
		w, tr := b.arrive()
		<-w
		done <- tr()
	}()

	for i := 0; i < 2; i++ {
		select {
		case ok := <-done:
			if !ok {
				t.Fatalf("expected a clean trip after two fresh arrivals")
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out")
		}
	}
}
