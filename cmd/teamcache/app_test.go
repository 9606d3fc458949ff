package main

import (
	"context"
	"testing"
)

func TestAppFrom_MissingApp(t *testing.T) {
	if _, err := appFrom(context.Background()); err == nil {
		t.Error("appFrom() on a bare context should fail")
	}
	if _, err := local(context.Background()); err == nil {
		t.Error("local() on a bare context should fail")
	}
}

func TestAppFrom_SharesHolder(t *testing.T) {
	a := &app{}
	ctx := withApp(context.Background(), a)
	child, cancel := context.WithCancel(ctx)
	defer cancel()

	got, err := appFrom(ctx)
	if err != nil {
		t.Fatalf("appFrom() failed: %v", err)
	}
	again, err := appFrom(child)
	if err != nil {
		t.Fatalf("appFrom() on derived context failed: %v", err)
	}
	if got != a || again != a {
		t.Error("appFrom() returned a different app")
	}
}

func TestApp_CloseUnopened(t *testing.T) {
	a := &app{}
	if err := a.close(); err != nil {
		t.Errorf("close() on unopened app = %v", err)
	}
	if err := a.close(); err != nil {
		t.Errorf("second close() = %v", err)
	}
}
