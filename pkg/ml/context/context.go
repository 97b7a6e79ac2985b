// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package context defines the Context and Variable types: Context organizes the hyperparameters
// and the variables (weights) of a model, and Variable holds the current value of one weight tensor.
package context

import (
	"encoding"
	"fmt"
	"iter"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/internal/scoped"
	"github.com/gomlx/stagednet/pkg/core/shapes"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/pkg/errors"
)

// Context organizes information shared by the layers of a model.
//
// The Context organizes 2 types of information:
//
//  1. Variables: model variables or weights. Layers create them at construction and read their
//     current value on every call, so an external optimizer can update them (Variable.SetValue)
//     between evaluations.
//  2. Parameters: hyperparameters and any arbitrary information that needs sharing among the
//     layer building functions using the Context.
//
// Both are organized in "scopes". The Context object is a thin wrapper that contains the current
// scope (similar to a current directory) and a link to the actual data. One changes scopes with
// Context.In("new_scope"): it returns a new Context with the new scope set, but still pointing
// (sharing) all the data with the previous Context. E.g:
//
//	func main() {
//		ctx := context.New()
//		ctx.SetParam("hidden_size", 100)
//		...
//	}
//
//	func buildReadout(ctx *context.Context, ...) {
//		ctx = ctx.In("readout")  // Variables created here are named "/readout/<name>".
//		...
//	}
//
// Variable duplicate creation checking: the context is by default configured with
// Context.Checked(true), which checks at every variable creation whether the variable already
// exists. Variable creation panics if:
//
// - Context.Unique() (the default) and variable already exists;
// - Context.Reuse() and variable didn't exist.
type Context struct {
	// scope for currently created variables and registration.
	scope string

	// reuse of variables, if set to true.
	reuse bool

	// checked access to variables: whether to check for reuse if variable is new or not. If set
	// to false it makes reuse irrelevant.
	checked bool

	// initializer is used to initialize variable values for a given shape.
	initializer VariableInitializer

	// contextData, where "data" component content is stored.
	data *contextData
}

// VariableInitializer builds the initial value of a variable with the given shape. All the
// randomness must come from key.
type VariableInitializer func(key random.Key, shape shapes.Shape) *tensors.Tensor

// ZeroInitializer initializes variables with zeros.
func ZeroInitializer(_ random.Key, shape shapes.Shape) *tensors.Tensor {
	return tensors.FromShape(shape)
}

// scopedVariableMap name to variable within a scope.
type scopedVariableMap map[string]*Variable

// contextData stores all context information and is shared among various Context, which
// serve only as scoped references.
type contextData struct {
	// params holds a model's building (hyper)parameters. Context is agnostic about the semantics
	// here: they are interpreted by the various model components independently. E.g:
	//
	// * "hidden_size" -> int: number of hidden units of the network.
	params *scoped.Params

	mu sync.RWMutex

	// variablesMap for this context organized per scope.
	variablesMap map[string]scopedVariableMap

	// variables is a plain list of all variables, in creation order.
	variables []*Variable
}

const (
	// ScopeSeparator is used between levels of scope. Scope names cannot use this character.
	ScopeSeparator = "/"

	// RootScope is the scope at the very root.
	RootScope = ScopeSeparator
)

// New returns an empty context, associated with freshly created data.
// The default variable initializer fills variables with zeros, see Context.WithInitializer.
func New() *Context {
	return &Context{
		scope:       RootScope,
		checked:     true,
		initializer: ZeroInitializer,
		data: &contextData{
			params:       scoped.New(ScopeSeparator),
			variablesMap: make(map[string]scopedVariableMap),
		},
	}
}

// Clone does a deep copy of the context: parameters are cloned and every variable is re-created
// in the new context with the same value. The scope, reuse and checked states are copied over.
//
// Since tensors are immutable, variable values are shared until one of the contexts changes them.
func (ctx *Context) Clone() (*Context, error) {
	newCtx := New()
	newCtx.scope = ctx.scope
	newCtx.reuse = ctx.reuse
	newCtx.checked = ctx.checked
	newCtx.initializer = ctx.initializer
	newCtx.data.params = ctx.data.params.Clone()
	for v := range ctx.IterVariables() {
		if _, err := v.CloneToContext(newCtx); err != nil {
			return nil, errors.WithMessagef(err, "failed to clone variable %q while cloning the Context", v.Name())
		}
	}
	return newCtx, nil
}

// copy creates a copy of the Context, but sharing the same "data" component.
func (ctx *Context) copy() *Context {
	ctx2 := &Context{}
	*ctx2 = *ctx
	return ctx2
}

// JoinScope and name into a single string.
// If scope is empty, name is returned.
// See also SplitScope.
func JoinScope(scope, name string) string {
	if strings.HasSuffix(scope, ScopeSeparator) {
		return scope + name
	}
	if scope == "" {
		return name
	}
	return fmt.Sprintf("%s%s%s", scope, ScopeSeparator, name)
}

// SplitScope splits the scope from the name for a combined string, typically created by JoinScope.
// If there is no scope configured, scope is set to "".
func SplitScope(scopeAndName string) (scope, name string) {
	if !strings.HasPrefix(scopeAndName, ScopeSeparator) {
		return "", scopeAndName
	}
	separationIdx := strings.LastIndex(scopeAndName, ScopeSeparator)
	name = scopeAndName[separationIdx+1:]
	if separationIdx == 0 {
		scope = RootScope
	} else {
		scope = scopeAndName[:separationIdx]
	}
	return
}

// Scope returns the full scope path.
func (ctx *Context) Scope() string {
	return ctx.scope
}

// EscapeScopeName replaces ScopeSeparator in the string and replaces them by "_".
func EscapeScopeName(scopeName string) string {
	return strings.ReplaceAll(scopeName, ScopeSeparator, "_")
}

// In returns a new reference to the Context with the extra given scope. No ScopeSeparator ("/") is
// allowed in scope.
func (ctx *Context) In(scope string) *Context {
	if scope == "" {
		exceptions.Panicf("cannot use empty scope for Context.In()")
	}
	if strings.Contains(scope, ScopeSeparator) {
		exceptions.Panicf("cannot use separator %q in scope element %q", ScopeSeparator, scope)
	}
	var newScope string
	if ctx.scope == ScopeSeparator {
		newScope = ScopeSeparator + scope
	} else {
		newScope = ctx.scope + ScopeSeparator + scope
	}
	return ctx.InAbsPath(newScope)
}

// Inf returns a new reference to the Context with the extra given scope, formatted with fmt.Sprintf.
func (ctx *Context) Inf(format string, args ...any) *Context {
	return ctx.In(fmt.Sprintf(format, args...))
}

// InAbsPath returns a new reference to the Context with the given absolute scope. It should start and
// have each element separated by ScopeSeparator. Use RootScope for the root scope.
func (ctx *Context) InAbsPath(scopePath string) *Context {
	if !strings.HasPrefix(scopePath, ScopeSeparator) {
		exceptions.Panicf("absolute scope path must start with separator %q, instead got %q", ScopeSeparator, scopePath)
	}
	ctx2 := ctx.copy()
	ctx2.scope = scopePath
	return ctx2
}

// Reuse returns a new reference to the Context set to reuse of variables.
// If checked is false, this setting is irrelevant.
func (ctx *Context) Reuse() *Context {
	ctx2 := ctx.copy()
	ctx2.reuse = true
	return ctx2
}

// Unique returns a new reference to the Context, set to only allow new variables.
// If checked is false, this setting is irrelevant.
func (ctx *Context) Unique() *Context {
	if !ctx.reuse {
		return ctx
	}
	ctx2 := ctx.copy()
	ctx2.reuse = false
	return ctx2
}

// IsReuse returns whether Context is marked for reuse.
func (ctx *Context) IsReuse() bool { return ctx.reuse }

// Checked returns a new reference to the Context with the given checking of variable creation.
func (ctx *Context) Checked(checked bool) *Context {
	ctx2 := ctx.copy()
	ctx2.checked = checked
	return ctx2
}

// IsChecked returns whether context is checking reuse rules.
func (ctx *Context) IsChecked() bool { return ctx.checked }

// WithInitializer returns a new reference to the Context, with the initializer set.
func (ctx *Context) WithInitializer(initializer VariableInitializer) *Context {
	if initializer == nil {
		exceptions.Panicf("Context.WithInitializer(): cannot set initializer to nil")
	}
	ctx2 := ctx.copy()
	ctx2.initializer = initializer
	return ctx2
}

// GetParam returns the value for the given param key, searching successively from
// the current scope back to the root scope ("/"), in case the key is not found.
//
// E.g: if current scope is "/a/b", it will search for the key in "/a/b" scope, then
// in "/a" and finally in "/", and return the first result found.
func (ctx *Context) GetParam(key string) (value any, found bool) {
	return ctx.data.params.Get(ctx.scope, key)
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// MustGetParam is like GetParam, but panics if the parameter is not found, or if it is not of type T.
//
// It tries to cast the value to the given type. If it fails, it tries to convert the
// value to the given type (so an `int` will be converted to a `float64` transparently).
// Strings are converted with encoding.TextUnmarshaler, if T implements it.
func MustGetParam[T any](ctx *Context, key string) T {
	var t T
	valueAny, found := ctx.GetParam(key)
	if !found {
		exceptions.Panicf("parameter %q (of type %T) not found in scope %q (and its parents)", key, t, ctx.Scope())
	}
	if value, ok := valueAny.(T); ok {
		return value
	}

	v := reflect.ValueOf(valueAny)
	typeOfT := reflect.TypeOf(t)
	valueT := reflect.New(typeOfT)
	if valueT.Type().Implements(textUnmarshalerType) && v.Kind() == reflect.String {
		if err := valueT.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(v.String())); err != nil {
			exceptions.Panicf("can't UnmarshalText %q to %s for parameter %q: %v", v.String(), typeOfT, key, err)
		}
		return valueT.Elem().Interface().(T)
	}
	if !v.IsValid() || !v.CanConvert(typeOfT) {
		exceptions.Panicf("MustGetParam/GetParamOr[%T](ctx, %q): ctx(scope=%q)[%q]=(%T) %#v, and cannot be converted to %T",
			t, key, ctx.Scope(), key, valueAny, valueAny, t)
	}
	return v.Convert(typeOfT).Interface().(T)
}

// GetParamOr either returns the value for the given param key in the context `ctx`,
// searching successively from the current scope back to the root scope ("/"), or if the
// key is not found or the key is set to nil, it returns the given default value.
//
// Conversion rules are the same as MustGetParam.
func GetParamOr[T any](ctx *Context, key string, defaultValue T) T {
	valueAny, found := ctx.GetParam(key)
	if !found || valueAny == nil {
		return defaultValue
	}
	return MustGetParam[T](ctx, key)
}

// SetParam sets the given param in the current scope. It will be visible (by GetParam)
// within this scope and descendant scopes (but not by other scopes).
func (ctx *Context) SetParam(key string, value any) {
	ctx.data.params.Set(ctx.scope, key, value)
}

// SetParams sets a collection of parameters in the current scope.
func (ctx *Context) SetParams(keyValues map[string]any) {
	for _, key := range slices.Sorted(maps.Keys(keyValues)) {
		ctx.data.params.Set(ctx.scope, key, keyValues[key])
	}
}

// EnumerateParams enumerates all parameters for all scopes calls fn with their values.
func (ctx *Context) EnumerateParams(fn func(scope, key string, value any)) {
	ctx.data.params.Enumerate(fn)
}

// GetVariableByScopeAndName returns the variable with the given name in the given scope, or nil
// if it doesn't exist.
func (ctx *Context) GetVariableByScopeAndName(scope, name string) *Variable {
	ctx.data.mu.RLock()
	defer ctx.data.mu.RUnlock()
	scopeVars, ok := ctx.data.variablesMap[scope]
	if !ok {
		return nil
	}
	return scopeVars[name]
}

// GetVariable returns the variable in the current scope, or nil if it doesn't exist.
func (ctx *Context) GetVariable(name string) *Variable {
	return ctx.GetVariableByScopeAndName(ctx.scope, name)
}

func (ctx *Context) setVariableInScope(name string, v *Variable) {
	ctx.data.mu.Lock()
	defer ctx.data.mu.Unlock()
	vSet, found := ctx.data.variablesMap[ctx.scope]
	if !found {
		vSet = make(scopedVariableMap)
		ctx.data.variablesMap[ctx.scope] = vSet
	}
	vSet[name] = v
	ctx.data.variables = append(ctx.data.variables, v)
}

// checkVariableCreation applies the Checked/Reuse rules and returns the existing variable, if any.
func (ctx *Context) checkVariableCreation(name string, shape shapes.Shape) *Variable {
	v := ctx.GetVariable(name)
	if v == nil && ctx.checked && ctx.reuse {
		exceptions.Panicf("requested variable %q in scope %q with Context.Reuse set, but variable does not exist", name, ctx.scope)
	}
	if v != nil && ctx.checked && !ctx.reuse {
		exceptions.Panicf(
			"variable %q for scope %q already exists -- if this was deliberate, use Context.Reuse() or Context.Checked(false)",
			name, ctx.scope)
	}
	if v != nil && !shape.Equal(v.shape) {
		exceptions.Panicf(
			"requested to reuse variable %q in scope %q, but with different shape from original: previous shape=%s, requested shape=%s",
			name, ctx.scope, v.shape, shape)
	}
	return v
}

// VariableWithShape creates or returns an existing variable with the given shape in the current scope.
// New variables are initialized with the context initializer (see WithInitializer), using the given key.
//
// By default, variables are marked as trainable.
//
// If Context is set with Context.Checked(true), this may panic if:
//
// - Context.Unique() and variable already exists;
// - Context.Reuse() and variable didn't exist.
func (ctx *Context) VariableWithShape(name string, shape shapes.Shape, key random.Key) *Variable {
	if v := ctx.checkVariableCreation(name, shape); v != nil {
		return v
	}
	value := ctx.initializer(key, shape)
	if !value.Shape().Equal(shape) {
		exceptions.Panicf("initializer for variable %q in scope %q returned shape %s, wanted %s",
			name, ctx.scope, value.Shape(), shape)
	}
	v := &Variable{
		ctx:       ctx,
		name:      name,
		scope:     ctx.Scope(),
		shape:     shape.Clone(),
		value:     value,
		Trainable: true,
	}
	ctx.setVariableInScope(name, v)
	return v
}

// VariableWithValue creates or returns a variable initialized with the given value in the current scope.
// If the variable already exists, its value is not overwritten.
//
// The same Checked/Reuse rules of VariableWithShape apply.
func (ctx *Context) VariableWithValue(name string, value *tensors.Tensor) *Variable {
	if v := ctx.checkVariableCreation(name, value.Shape()); v != nil {
		return v
	}
	v := &Variable{
		ctx:       ctx,
		name:      name,
		scope:     ctx.Scope(),
		shape:     value.Shape().Clone(),
		value:     value,
		Trainable: true,
	}
	ctx.setVariableInScope(name, v)
	return v
}

// IterVariables iterates over all variables, in all scopes, in creation order.
func (ctx *Context) IterVariables() iter.Seq[*Variable] {
	ctx.data.mu.RLock()
	variables := slices.Clone(ctx.data.variables)
	ctx.data.mu.RUnlock()
	return func(yield func(*Variable) bool) {
		for _, v := range variables {
			if !yield(v) {
				return
			}
		}
	}
}

// IterVariablesInScope iterates over the variables in the current scope and its sub-scopes,
// in creation order.
func (ctx *Context) IterVariablesInScope() iter.Seq[*Variable] {
	return func(yield func(*Variable) bool) {
		for v := range ctx.IterVariables() {
			if !inScope(v.scope, ctx.scope) {
				continue
			}
			if !yield(v) {
				return
			}
		}
	}
}

func inScope(scope, parent string) bool {
	if parent == RootScope || scope == parent {
		return true
	}
	return strings.HasPrefix(scope, parent+ScopeSeparator)
}

// EnumerateVariables calls fn for every variable, in creation order.
func (ctx *Context) EnumerateVariables(fn func(v *Variable)) {
	for v := range ctx.IterVariables() {
		fn(v)
	}
}

// NumVariables return the number of variables in this Context.
func (ctx *Context) NumVariables() int {
	ctx.data.mu.RLock()
	defer ctx.data.mu.RUnlock()
	return len(ctx.data.variables)
}

// NumParameters returns the summed-up number of all variables' elements.
func (ctx *Context) NumParameters() int {
	total := 0
	for v := range ctx.IterVariables() {
		total += v.Shape().Size()
	}
	return total
}
