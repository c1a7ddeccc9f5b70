package try

// Fataler is something which can stop the flow with a fatal message.
//
// *testing.T and *log.Logger satisfy this.
type Fataler interface {
	Fatal(...any)
}

// Either wraps a (value, error) pair returned by a function call.
//
// It is "ok" when the error is nil.
type Either[T any] interface {
	// Get returns the wrapped pair as is.
	Get() (T, error)

	// OrFatal returns the value when ok.
	//
	// Otherwise it calls ftl.Fatal with the error.
	// When ftl also has Helper() (like *testing.T), Helper is called first.
	OrFatal(ftl Fataler) T

	// OrDefault returns the value when ok, or d otherwise.
	OrDefault(d T) T
}

// To wraps a result of a function returning (T, error).
//
//	client := try.To(rest.NewClient(conf)).OrFatal(t)
func To[T any](ok T, ng error) Either[T] {
	if ng == nil {
		return tryOk[T]{ok}
	}
	return tryNg[T]{ng}
}

type tryOk[T any] struct {
	value T
}

func (ok tryOk[T]) Get() (T, error) { return ok.value, nil }
func (ok tryOk[T]) OrDefault(T) T { return ok.value }
func (ok tryOk[T]) OrFatal(Fataler) T { return ok.value }

type tryNg[T any] struct {
	err error
}

func (ng tryNg[T]) Get() (T, error) { return *new(T), ng.err }
func (ng tryNg[T]) OrDefault(d T) T { return d }

func (ng tryNg[T]) OrFatal(ftl Fataler) T {
	if hlp, ok := ftl.(interface{ Helper() }); ok {
		hlp.Helper()
	}
	ftl.Fatal(ng.err)
	return *new(T)
}
