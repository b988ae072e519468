package ast

import (
	"errors"
	"fmt"
)

var ErrMalformedConstruct = errors.New("malformed construct")

// MalformedConstructError reports a node whose shape the backend does not recognize.
type MalformedConstructError struct {
	Kind   string
	Reason string
	Line   int
	Column int
}

func (e *MalformedConstructError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%d:%d: malformed %s: %s", e.Line, e.Column, e.Kind, e.Reason)
	}
	return fmt.Sprintf("malformed %s: %s", e.Kind, e.Reason)
}

func (e *MalformedConstructError) Is(target error) bool { return target == ErrMalformedConstruct }

// Malformed builds a MalformedConstructError positioned at node id.
func (t *Tree) Malformed(id NodeID, format string, args ...any) error {
	err := &MalformedConstructError{Reason: fmt.Sprintf(format, args...)}
	if n := t.Node(id); n != nil {
		err.Kind, err.Line, err.Column = n.Type.String(), n.Tok.Line, n.Tok.Column
	} else {
		err.Kind = "node"
	}
	return err
}
