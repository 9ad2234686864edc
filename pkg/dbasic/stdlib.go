package dbasic

import (
	_ "embed"
	"encoding/json"
)

//go:embed stdlib.json
var stdlibContent string

// The signatures of the functions every DBASIC program gets for free. The
// implementations live in the back-ends ('input' and 'print' are emitted after
// the user functions in assembly, before them in C), the front-end only needs the signatures here to check
// calls against. A variadic entry fixes the leading argument types and leaves
// everything after them unchecked.
var Builtins = map[string]Builtin{}

// The ABI of a single built-in function as the type checker sees it.
type Builtin struct {
	Args     []DataType `json:"args"`
	Variadic bool       `json:"variadic"`
	Return   DataType   `json:"return"`
}

func init() { json.Unmarshal([]byte(stdlibContent), &Builtins) }
