package receiver

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// Filter is a compiled CEL expression evaluated against each record. The
// expression sees these variables:
//
//	seq     int     record sequence number
//	size    int     record length in bytes
//	text    string  record bytes
//	json    dyn     record parsed as JSON, or null
//	level   string  the "level" field of a JSON record, or ""
//	now_ms  int     current time in Unix milliseconds
//
// A nil *Filter accepts every record.
type Filter struct {
	expr string
	prog cel.Program
}

// NewFilter compiles expr. An empty expression returns a nil filter.
func NewFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("seq", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		cel.Variable("json", cel.DynType),
		cel.Variable("level", cel.StringType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	checked, iss := env.Check(ast)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &Filter{expr: expr, prog: prog}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match reports whether r passes the filter. Evaluation errors and
// non-bool results reject the record.
func (f *Filter) Match(r *Record) bool {
	if f == nil {
		return true
	}
	var obj any
	if m := r.JSON(); m != nil {
		obj = m
	}
	out, _, err := f.prog.Eval(map[string]any{
		"seq":    int64(r.Seq),
		"size":   int64(len(r.Data)),
		"text":   string(r.Data),
		"json":   obj,
		"level":  r.Level(),
		"now_ms": time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// parseJSON decodes data when it looks like a JSON object.
func parseJSON(data []byte) (map[string]any, bool) {
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	return obj, true
}
