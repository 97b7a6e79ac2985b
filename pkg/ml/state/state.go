// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package state defines the structured state of a staged network: NetworkState, its fields,
// and Trajectory, the sequence of states of a run.
package state

import (
	"fmt"
	"strings"

	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/support/errs"
)

// NetworkState is the state of a staged network between steps.
//
// Output is nil iff the network has no readout, and Encoding is nil iff it has no encoder. Input
// is never nil, but it may be an empty vector.
//
// It has value semantics: tensors are immutable, and updating a field (Field.With) returns a
// new NetworkState.
type NetworkState struct {
	Input, Hidden, Output, Encoding *tensors.Tensor
}

// Field selects one of the fields of a NetworkState.
type Field int

//go:generate go tool enumer -type=Field -trimprefix=Field -transform=snake -output=gen_field_enumer.go state.go

const (
	FieldInput Field = iota
	FieldHidden
	FieldOutput
	FieldEncoding
)

func (f Field) ref(st *NetworkState) **tensors.Tensor {
	switch f {
	case FieldInput:
		return &st.Input
	case FieldHidden:
		return &st.Hidden
	case FieldOutput:
		return &st.Output
	case FieldEncoding:
		return &st.Encoding
	default:
		panic(errs.Statef("invalid state field %d", int(f)))
	}
}

// Present returns whether the field is set in st.
func (f Field) Present(st NetworkState) bool {
	return *f.ref(&st) != nil
}

// Get returns the field value. It returns a state error if the field is absent.
func (f Field) Get(st NetworkState) (*tensors.Tensor, error) {
	value := *f.ref(&st)
	if value == nil {
		return nil, errs.Statef("state field %q is absent", f)
	}
	return value, nil
}

// MustGet returns the field value, and panics with a state error if it is absent.
func (f Field) MustGet(st NetworkState) *tensors.Tensor {
	value, err := f.Get(st)
	if err != nil {
		panic(err)
	}
	return value
}

// With returns a copy of st with the field set to value.
func (f Field) With(st NetworkState, value *tensors.Tensor) NetworkState {
	*f.ref(&st) = value
	return st
}

// Equal returns whether all fields are equal, element-wise. Absent fields are only equal to
// absent fields.
func (st NetworkState) Equal(other NetworkState) bool {
	for _, f := range FieldValues() {
		if !(*f.ref(&st)).Equal(*f.ref(&other)) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (st NetworkState) String() string {
	var sb strings.Builder
	sb.WriteString("NetworkState{")
	for ii, f := range FieldValues() {
		if ii > 0 {
			sb.WriteString(", ")
		}
		value := *f.ref(&st)
		if value == nil {
			fmt.Fprintf(&sb, "%s: <absent>", f)
		} else {
			fmt.Fprintf(&sb, "%s: %s", f, value.Shape())
		}
	}
	sb.WriteString("}")
	return sb.String()
}

// Trajectory is the sequence of states of a run: States[0] is the initial state, and States[t+1]
// the state after step t.
type Trajectory struct {
	States []NetworkState
}

// Len returns the number of states, including the initial one.
func (tr *Trajectory) Len() int { return len(tr.States) }

// Last returns the final state.
func (tr *Trajectory) Last() NetworkState { return tr.States[len(tr.States)-1] }

// Field stacks the values of a field over time, in a tensor shaped [Len(), fieldSize]. It returns
// a state error if the field is absent.
func (tr *Trajectory) Field(f Field) (*tensors.Tensor, error) {
	values := make([]*tensors.Tensor, len(tr.States))
	for ii, st := range tr.States {
		value, err := f.Get(st)
		if err != nil {
			return nil, err
		}
		values[ii] = value
	}
	return ops.Stack(values...), nil
}
