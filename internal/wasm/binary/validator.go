package binary

// Validator is the opaque Wasm binary validator capability (spec §1 "the
// Wasm binary validator (treated as an opaque capability)"): translation
// only calls it, never re-implements what it does. A production embedder
// plugs in a real validator (type checking of every instruction against
// the declared signature, control-flow stack discipline, and so on); this
// package ships NopValidator, which accepts everything, matching the
// "already validated" CompileInput contract documented on ValidatorToken.
type Validator interface {
	// ValidateFunction is called once per defined function with its raw
	// body bytes and declared signature. A non-nil error aborts
	// translation as a KindInvalidWasm diagnostic.
	ValidateFunction(body []byte, sig *CompileInput) error
}

// NopValidator implements Validator by accepting every function body
// unconditionally. Decode never calls it directly (see decodeCodeSection);
// it exists so callers that want to thread a Validator through their own
// pipeline (e.g. the compiler driver, which re-validates lazily per
// function in some embedders) have a reasonable default.
type NopValidator struct{}

func (NopValidator) ValidateFunction([]byte, *CompileInput) error { return nil }
