package command

import "testing"

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	r := NewRegistry()
	var gotArgs []string
	r.Register("kick", func(args []string) (string, error) {
		gotArgs = args
		return "kicked", nil
	})

	out, err := r.Dispatch(`kick "player one" 30`)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out != "kicked" {
		t.Fatalf("out = %q, want kicked", out)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "player one" || gotArgs[1] != "30" {
		t.Fatalf("args = %v, unexpected", gotArgs)
	}
}

func TestDispatchUnknownCommandReturnsError(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Dispatch("nosuchcommand"); err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}

func TestDispatchEmptyLineIsError(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Dispatch("   "); err == nil {
		t.Fatal("expected an error for an empty command line")
	}
}
