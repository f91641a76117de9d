package llm

import (
	"context"
	"encoding/json"
	"testing"
)

func TestToolRegistryRegisterAndGet(t *testing.T) {
	registry := NewToolRegistry()

	err := registry.Register(Tool{
		Name:        "create_task",
		Description: "Create a task",
		Parameters:  ObjectSchema(map[string]interface{}{"title": map[string]interface{}{"type": "string"}}, []string{"title"}),
		Handler: func(ctx context.Context, args json.RawMessage, deps interface{}) (interface{}, error) {
			return map[string]string{"ok": "yes"}, nil
		},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, ok := registry.Get("create_task"); !ok {
		t.Fatal("expected registered tool to be found")
	}
	if _, ok := registry.Get("delete_task"); ok {
		t.Fatal("expected unknown tool lookup to miss")
	}
}

func TestToolRegistryRejectsDuplicatesAndInvalid(t *testing.T) {
	registry := NewToolRegistry()
	handler := func(ctx context.Context, args json.RawMessage, deps interface{}) (interface{}, error) {
		return nil, nil
	}

	if err := registry.Register(Tool{Name: "", Handler: handler}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := registry.Register(Tool{Name: "x"}); err == nil {
		t.Fatal("expected error for nil handler")
	}
	if err := registry.Register(Tool{Name: "x", Handler: handler}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := registry.Register(Tool{Name: "x", Handler: handler}); err == nil {
		t.Fatal("expected error for duplicate name")
	}
}

func TestToolRegistryManifestsAreSorted(t *testing.T) {
	registry := NewToolRegistry()
	handler := func(ctx context.Context, args json.RawMessage, deps interface{}) (interface{}, error) {
		return nil, nil
	}
	for _, name := range []string{"update_task", "create_task", "delete_task"} {
		if err := registry.Register(Tool{Name: name, Handler: handler}); err != nil {
			t.Fatalf("register %s failed: %v", name, err)
		}
	}

	manifests := registry.Manifests()
	want := []string{"create_task", "delete_task", "update_task"}
	for i, m := range manifests {
		if m.Name != want[i] {
			t.Fatalf("unexpected manifest order: got %s at %d", m.Name, i)
		}
	}
}

func TestFirstJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"prose wrapped", "Sure, here you go:\n{\"intent\": \"create\"}\nDone.", `{"intent": "create"}`, true},
		{"fenced", "```json\n{\"q\":\"when?\"}\n```", "{\"q\":\"when?\"}", true},
		{"no object", "plain text reply", "", false},
		{"broken object", "{not json", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := FirstJSONObject(tc.in)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
