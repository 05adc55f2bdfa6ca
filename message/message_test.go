package message

import (
	"testing"
)

type registryProbe struct {
	Value int
}

func (*registryProbe) MessageName() string { return "message_test.Probe" }

type registryImpostor struct{}

func (*registryImpostor) MessageName() string { return "message_test.Probe" }

type unnamed struct{}

func (*unnamed) MessageName() string { return "" }

type lazyProbe struct{}

func (*lazyProbe) MessageName() string { return "message_test.Lazy" }

func TestRegisterIsIdempotent(t *testing.T) {
	factory := func() Message { return new(registryProbe) }
	if err := Register(factory); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := Register(factory); err != nil {
		t.Fatalf("second Register of the same type failed: %v", err)
	}

	name, err := NameOf[*registryProbe]()
	if err != nil {
		t.Fatalf("NameOf failed: %v", err)
	}
	if name != "message_test.Probe" {
		t.Fatalf("NameOf: got %q", name)
	}
}

func TestRegisterNameConflict(t *testing.T) {
	MustRegister(func() Message { return new(registryProbe) })

	if err := Register(func() Message { return new(registryImpostor) }); err == nil {
		t.Fatal("expected an error registering a different type under a taken name")
	}
}

func TestRegisterEmptyName(t *testing.T) {
	if err := Register(func() Message { return new(unnamed) }); err == nil {
		t.Fatal("expected an error for an empty message name")
	}
}

func TestNewReturnsFreshInstances(t *testing.T) {
	MustRegister(func() Message { return new(registryProbe) })

	first, ok := New("message_test.Probe")
	if !ok {
		t.Fatal("New did not find a registered type")
	}
	first.(*registryProbe).Value = 9

	second, _ := New("message_test.Probe")
	if second.(*registryProbe).Value != 0 {
		t.Fatal("New must return a default-valued instance each call")
	}

	if _, ok := New("message_test.Missing"); ok {
		t.Fatal("New found an unregistered name")
	}
}

func TestRegisterType(t *testing.T) {
	if _, err := NameOf[*lazyProbe](); err == nil {
		t.Fatal("NameOf should fail before registration")
	}

	name, err := RegisterType[*lazyProbe]()
	if err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	if name != "message_test.Lazy" {
		t.Fatalf("RegisterType name: got %q", name)
	}
	if !Registered(name) {
		t.Fatal("type not visible after RegisterType")
	}
	if _, err := RegisterType[*lazyProbe](); err != nil {
		t.Fatalf("repeated RegisterType failed: %v", err)
	}
}

func TestBuiltinsRegistered(t *testing.T) {
	for _, name := range []string{EmptyName, MappingRequestName, MappingResponseName} {
		if !Registered(name) {
			t.Errorf("builtin %s is not registered", name)
		}
	}

	names := Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("Names not sorted: %v", names)
		}
	}
}
