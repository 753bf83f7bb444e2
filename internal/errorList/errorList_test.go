package errorList

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrOrNil(t *testing.T) {
	var errs ErrorList
	if err := errs.ErrOrNil(); err != nil {
		t.Errorf("Got: empty list returned error: %v. Want: nil.", err)
	}
	errs = errs.Append(errors.New("some error"))
	if err := errs.ErrOrNil(); err == nil {
		t.Errorf("Got: non-empty list returned nil. Want: the list itself.")
	}
}

func TestAppend(t *testing.T) {
	var errs ErrorList
	errs = errs.Append(nil)
	if len(errs) != 0 {
		t.Errorf("Got: appending nil added an entry: %v. Want: no entries.", errs)
	}
	errs = errs.Append(errors.New("first"))
	other := ErrorList{errors.New("second"), errors.New("third")}
	errs = errs.Append(other)
	if len(errs) != 3 {
		t.Errorf("Got: %d errors after appending a list. Want: 3.", len(errs))
	}
}

func TestTrim(t *testing.T) {
	var errs ErrorList
	for i := 0; i < 5; i++ {
		errs = errs.Append(fmt.Errorf("error %d", i))
	}
	trimmed := errs.Trim(3)
	if len(trimmed) != 4 {
		t.Fatalf("Got: %d errors after trimming to 3. Want: 4 (3 + ErrTooManyErrors).", len(trimmed))
	}
	if !errors.Is(trimmed[3], ErrTooManyErrors) {
		t.Errorf("Got: last entry is %v. Want: ErrTooManyErrors.", trimmed[3])
	}

	if got := errs.Trim(10); len(got) != 5 {
		t.Errorf("Got: %d errors after trimming to 10. Want: 5, unchanged.", len(got))
	}
}

func TestInternalError(t *testing.T) {
	cause := errors.New("boom")
	err := Internal("class merger", "[A, B]", cause)
	if !errors.Is(err, cause) {
		t.Errorf("Got: InternalError does not unwrap to its cause.")
	}
	want := "internal error in class merger ([A, B]): boom"
	if err.Error() != want {
		t.Errorf("Got: error message %q. Want: %q.", err.Error(), want)
	}
}

func TestRecoverInternal(t *testing.T) {
	t.Run("no panic", func(t *testing.T) {
		err := func() (err error) {
			defer RecoverInternal("phase", "subject", &err)
			return nil
		}()
		if err != nil {
			t.Errorf("Got: error %v without a panic. Want: nil.", err)
		}
	})

	t.Run("plain error panic", func(t *testing.T) {
		err := func() (err error) {
			defer RecoverInternal("phase", "subject", &err)
			panic(errors.New("invariant broken"))
		}()
		var internal *InternalError
		if !errors.As(err, &internal) {
			t.Fatalf("Got: error %v. Want: an InternalError.", err)
		}
		if internal.Phase != "phase" || internal.Subject != "subject" {
			t.Errorf("Got: phase %q, subject %q. Want: \"phase\", \"subject\".", internal.Phase, internal.Subject)
		}
	})

	t.Run("internal error panic passes through", func(t *testing.T) {
		original := Internal("inner phase", "inner subject", errors.New("cause"))
		err := func() (err error) {
			defer RecoverInternal("outer phase", "outer subject", &err)
			panic(original)
		}()
		var internal *InternalError
		if !errors.As(err, &internal) {
			t.Fatalf("Got: error %v. Want: an InternalError.", err)
		}
		if internal.Phase != "inner phase" {
			t.Errorf("Got: phase %q. Want: the inner phase preserved.", internal.Phase)
		}
	})

	t.Run("non-error panic re-raised", func(t *testing.T) {
		defer func() {
			if p := recover(); p != "not an error" {
				t.Errorf("Got: recovered %v. Want: the original panic value.", p)
			}
		}()
		var err error
		defer RecoverInternal("phase", "subject", &err)
		panic("not an error")
	})
}
