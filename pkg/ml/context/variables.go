// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package context

import (
	"fmt"
	"sync"

	"github.com/gomlx/stagednet/pkg/core/shapes"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/support/errs"
)

// Variable holds the current value of a model weight. It's defined in a scope in a Context.
//
// Layers hold a reference to their variables and read Value on every call, so a new value set with
// SetValue (e.g. by an optimizer, in between evaluations) is picked up by the next step.
// Values are immutable tensors: SetValue replaces the tensor, it never changes it in place.
type Variable struct {
	ctx         *Context
	name, scope string

	// Trainable indicates whether the variable is trainable.
	// If set to false, it won't be touched by trainers.
	Trainable bool

	shape shapes.Shape

	mu    sync.RWMutex
	value *tensors.Tensor
}

// CloneToContext creates a copy of the variable (same name, scope, trainable state and value)
// in the given context.
func (v *Variable) CloneToContext(toCtx *Context) (*Variable, error) {
	newV := &Variable{
		ctx:       toCtx,
		name:      v.name,
		scope:     v.scope,
		shape:     v.shape.Clone(),
		Trainable: v.Trainable,
		value:     v.Value(),
	}
	if toCtx.InAbsPath(v.scope).GetVariable(v.name) != nil {
		return nil, errs.Configurationf("variable %q already exists in the target context", v.ScopeAndName())
	}
	toCtx.InAbsPath(v.scope).setVariableInScope(v.name, newV)
	return newV, nil
}

// Name of the variable within the scope.
func (v *Variable) Name() string {
	if v == nil {
		return "<nil>"
	}
	return v.name
}

// Scope where the variable was created.
func (v *Variable) Scope() string {
	if v == nil {
		return "<nil>"
	}
	return v.scope
}

// ScopeAndName returns a combination of scope and name, joined by ScopeSeparator.
func (v *Variable) ScopeAndName() string {
	return JoinScope(v.Scope(), v.Name())
}

// String implements stringer.
func (v *Variable) String() string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s%s", v.ScopeAndName(), v.shape)
}

// Shape of the variable.
func (v *Variable) Shape() shapes.Shape {
	return v.shape
}

// Value returns the current value of the variable.
func (v *Variable) Value() *tensors.Tensor {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// SetValue replaces the value of the variable. The new value must have the same shape.
func (v *Variable) SetValue(value *tensors.Tensor) error {
	if value == nil || !value.Shape().Equal(v.shape) {
		var got any = "<nil>"
		if value != nil {
			got = value.Shape()
		}
		return errs.Shapef("Variable(%s).SetValue(): value shape %v, wanted %s", v.ScopeAndName(), got, v.shape)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = value
	return nil
}

// MustSetValue is like SetValue, but panics on error.
func (v *Variable) MustSetValue(value *tensors.Tensor) {
	if err := v.SetValue(value); err != nil {
		panic(err)
	}
}
