package handler

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func echoFactory() (Handler, error) {
	return HandlerFunc(func(_ context.Context, in Input) (*Result, error) {
		return &Result{Value: in.Transaction.Data}, nil
	}), nil
}

func TestLoader_RegisterAndResolve(t *testing.T) {
	l := NewLoader()
	if err := l.Register("handlers.Echo", echoFactory); err != nil {
		t.Fatalf("Register: %v", err)
	}

	factory, err := l.Resolve("handlers.Echo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	h, err := l.Instantiate("handlers.Echo", factory)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	res, err := h.ProcessData(context.Background(), Input{Transaction: RawTransaction{Data: "0xabcd"}})
	if err != nil {
		t.Fatalf("ProcessData: %v", err)
	}
	if res.Value != "0xabcd" {
		t.Errorf("Value = %v, want 0xabcd", res.Value)
	}
}

func TestLoader_RegisterErrors(t *testing.T) {
	l := NewLoader()
	l.MustRegister("handlers.Echo", echoFactory)

	if err := l.Register("handlers.Echo", echoFactory); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("duplicate register err = %v, want ErrAlreadyRegistered", err)
	}
	if err := l.Register("  ", echoFactory); err == nil {
		t.Error("expected error for empty identifier")
	}
	if err := l.Register("handlers.Nil", nil); err == nil {
		t.Error("expected error for nil factory")
	}
}

func TestLoader_MustRegisterPanicsOnDuplicate(t *testing.T) {
	l := NewLoader()
	l.MustRegister("handlers.Echo", echoFactory)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	l.MustRegister("handlers.Echo", echoFactory)
}

func TestLoader_ResolveUnknown(t *testing.T) {
	l := NewLoader()

	_, err := l.Resolve("handlers.Missing")
	if !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("err = %v, want ErrHandlerNotFound", err)
	}
	var re *ResolutionError
	if !errors.As(err, &re) || re.Handler != "handlers.Missing" {
		t.Errorf("ResolutionError.Handler = %+v", re)
	}
	if !IsResolutionError(err) {
		t.Error("IsResolutionError should be true")
	}
}

func TestLoader_InstantiateFailures(t *testing.T) {
	l := NewLoader()
	boom := errors.New("boom")

	cases := map[string]Factory{
		"error": func() (Handler, error) { return nil, boom },
		"nil":   func() (Handler, error) { return nil, nil },
		"panic": func() (Handler, error) { panic("constructor exploded") },
	}
	for name, factory := range cases {
		t.Run(name, func(t *testing.T) {
			h, err := l.Instantiate("handlers."+name, factory)
			if h != nil {
				t.Errorf("handler = %v, want nil", h)
			}
			if !errors.Is(err, ErrInstantiation) {
				t.Fatalf("err = %v, want ErrInstantiation", err)
			}
			var ie *InstantiationError
			if !errors.As(err, &ie) || ie.Handler != "handlers."+name {
				t.Errorf("InstantiationError = %+v", ie)
			}
		})
	}

	_, err := l.Instantiate("handlers.error", cases["error"])
	if !errors.Is(err, boom) {
		t.Errorf("cause should be preserved, got %v", err)
	}

	_, err = l.Instantiate("handlers.panic", cases["panic"])
	var pe *PanicError
	if !errors.As(err, &pe) || pe.Value != "constructor exploded" {
		t.Errorf("panic cause = %+v", pe)
	}
}

func TestLoader_IDsAndMissing(t *testing.T) {
	l := NewLoader()
	l.MustRegister("handlers.Transfer", echoFactory)
	l.MustRegister("handlers.Mint", echoFactory)

	if got := l.IDs(); !reflect.DeepEqual(got, []string{"handlers.Mint", "handlers.Transfer"}) {
		t.Errorf("IDs = %v", got)
	}
	if l.Count() != 2 {
		t.Errorf("Count = %d, want 2", l.Count())
	}
	missing := l.Missing([]string{"handlers.Mint", "handlers.Burn"})
	if !reflect.DeepEqual(missing, []string{"handlers.Burn"}) {
		t.Errorf("Missing = %v", missing)
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := &InstantiationError{Handler: "h", Cause: errors.New("x")}
	err := error(&ExecutionError{Handler: "h", Cause: cause})

	if !errors.Is(err, ErrExecution) {
		t.Error("should match ErrExecution")
	}
	if !errors.Is(err, ErrInstantiation) {
		t.Error("should reach wrapped ErrInstantiation")
	}
	if !IsExecutionError(err) || !IsInstantiationError(err) {
		t.Error("type helpers should see both errors")
	}
}
