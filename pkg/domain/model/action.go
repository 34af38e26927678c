package model

import (
	"fmt"
	"strings"
)

// Action is a mutating operation that a dry run recorded instead of executing.
type Action struct {
	Component string
	Operation string
	Args      []string
}

func (a Action) String() string {
	return fmt.Sprintf("%s.%s(%s)", a.Component, a.Operation, strings.Join(a.Args, ", "))
}
