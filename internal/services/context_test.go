package services_test

import (
	"context"
	"testing"

	"shortsfactory/internal/services"
)

func TestContextIdentifiers(t *testing.T) {
	cases := []struct {
		name   string
		attach func(context.Context, string) context.Context
		lookup func(context.Context) (string, bool)
	}{
		{"record", services.WithRecordID, services.RecordIDFromContext},
		{"stage", services.WithStage, services.StageFromContext},
		{"request", services.WithRequestID, services.RequestIDFromContext},
		{"run token", services.WithRunToken, services.RunTokenFromContext},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := tc.attach(context.Background(), "value-"+tc.name)
			if got, ok := tc.lookup(ctx); !ok || got != "value-"+tc.name {
				t.Fatalf("lookup = %q, %v", got, ok)
			}
			if _, ok := tc.lookup(tc.attach(context.Background(), "")); ok {
				t.Fatal("blank value must not be stored")
			}
		})
	}
}

func TestContextIdentifiersDoNotCollide(t *testing.T) {
	ctx := services.WithStage(services.WithRecordID(context.Background(), "abc"), "editor")
	if _, ok := services.RunTokenFromContext(ctx); ok {
		t.Fatal("run token must be absent")
	}
	if id, _ := services.RecordIDFromContext(ctx); id != "abc" {
		t.Fatalf("record id overwritten: %q", id)
	}
}
