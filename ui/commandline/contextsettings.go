// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains convenience tools to configure and report on stagednet models from
// the command line.
package commandline

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/support/fsutil"
	"github.com/gomlx/stagednet/pkg/support/xslices"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ParseContextSettings from settings -- typically the contents of a flag set by the user.
// The settings are a list separated by ";": e.g.: "param1=value1;param2=value2;...".
//
// All the parameters "param1", "param2", etc. must be already set with default values
// in the root scope of the context `ctx`. The default values are also used to set the type to
// which the string values will be parsed to.
//
// One can also provide a scope for the parameters: "/hidden/dt=0.01" will work, as long as a
// default "dt" is defined in `ctx`.
//
// A setting "file:<path>" reads the settings from a YAML file mapping parameter names to values.
// Nested mappings are scopes:
//
//	hidden_size: 64
//	population_sizes: "4,4,2,2"
//	hidden:
//	  dt: 0.01
//
// For integer types, "_" is removed: it allows one to enter large numbers using it as a separator, like
// in Go. E.g.: 1_000_000 = 1000000.
//
// It returns the list of parameter paths set, in order.
func ParseContextSettings(ctx *context.Context, settings string) (paramsSet []string, err error) {
	for _, setting := range strings.Split(settings, ";") {
		paramsSet, err = parseContextSetting(ctx, setting, paramsSet)
		if err != nil {
			return
		}
	}
	return
}

func parseContextSetting(ctx *context.Context, setting string, paramsSet []string) ([]string, error) {
	setting = strings.TrimSpace(setting)
	if setting == "" {
		return paramsSet, nil
	}
	if strings.HasPrefix(setting, "file:") {
		return parseSettingsFile(ctx, strings.TrimPrefix(setting, "file:"), paramsSet)
	}
	parts := strings.Split(setting, "=")
	if len(parts) != 2 {
		return paramsSet, errors.Errorf("can't parse settings %q: each setting requires the format \"<param>=<value>\"",
			setting)
	}
	if err := setContextParam(ctx, parts[0], parts[1]); err != nil {
		return paramsSet, err
	}
	return append(paramsSet, parts[0]), nil
}

func parseSettingsFile(ctx *context.Context, filePath string, paramsSet []string) ([]string, error) {
	filePath, err := fsutil.ReplaceTildeInDir(filePath)
	if err != nil {
		return paramsSet, err
	}
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return paramsSet, errors.Wrapf(err, "failed to read settings from file %q", filePath)
	}
	var values map[string]any
	if err = yaml.Unmarshal(contents, &values); err != nil {
		return paramsSet, errors.Wrapf(err, "failed to parse YAML settings from file %q", filePath)
	}
	return parseSettingsMap(ctx, "", values, paramsSet)
}

// parseSettingsMap sets the values of a YAML mapping. Nested mappings are taken as scopes.
func parseSettingsMap(ctx *context.Context, scope string, values map[string]any, paramsSet []string) ([]string, error) {
	var err error
	for _, key := range xslices.SortedKeys(values) {
		paramPath := key
		if scope != "" {
			paramPath = scope + context.ScopeSeparator + key
		}
		switch v := values[key].(type) {
		case map[string]any:
			if scope == "" {
				paramPath = context.ScopeSeparator + key
			}
			paramsSet, err = parseSettingsMap(ctx, paramPath, v, paramsSet)
		case []any:
			err = setContextParam(ctx, paramPath, strings.Join(xslices.Map(v, func(e any) string { return fmt.Sprint(e) }), ","))
			paramsSet = append(paramsSet, paramPath)
		default:
			err = setContextParam(ctx, paramPath, fmt.Sprint(v))
			paramsSet = append(paramsSet, paramPath)
		}
		if err != nil {
			return paramsSet, err
		}
	}
	return paramsSet, nil
}

// setContextParam parses valueStr to the type of the default value of the parameter, and sets it
// in the scope given in paramPath.
func setContextParam(ctx *context.Context, paramPath, valueStr string) error {
	paramScope, paramName := context.SplitScope(paramPath)
	if strings.Contains(paramName, context.ScopeSeparator) {
		return errors.Errorf("can't set parameter %q because some scope is set, but it is not absolute (it does not start with %q)",
			paramPath, context.ScopeSeparator)
	}
	value, found := ctx.InAbsPath(context.RootScope).GetParam(paramName)
	if !found {
		return errors.Errorf("can't set parameter %q (scope=%q) because the param %q is not known in the root context",
			paramPath, paramScope, paramName)
	}
	ctxInScope := ctx
	if paramScope != "" {
		ctxInScope = ctxInScope.InAbsPath(paramScope)
	}

	var err error
	switch v := value.(type) {
	case int:
		err = json.Unmarshal([]byte(strings.ReplaceAll(valueStr, "_", "")), &v)
		value = v
	case int64:
		err = json.Unmarshal([]byte(strings.ReplaceAll(valueStr, "_", "")), &v)
		value = v
	case uint64:
		err = json.Unmarshal([]byte(strings.ReplaceAll(valueStr, "_", "")), &v)
		value = v
	case float64:
		err = json.Unmarshal([]byte(valueStr), &v)
		value = v
	case bool:
		err = json.Unmarshal([]byte(valueStr), &v)
		value = v
	case string:
		value = valueStr
	case []string:
		value = strings.Split(valueStr, ",")
	case []int:
		value = xslices.Map(strings.Split(valueStr, ","), func(str string) int {
			var asInt int
			if newErr := json.Unmarshal([]byte(strings.ReplaceAll(str, "_", "")), &asInt); newErr != nil {
				err = newErr
			}
			return asInt
		})
	case []float64:
		value = xslices.Map(strings.Split(valueStr, ","), func(str string) float64 {
			var asNum float64
			if newErr := json.Unmarshal([]byte(str), &asNum); newErr != nil {
				err = newErr
			}
			return asNum
		})
	default:
		err = errors.Errorf("don't know how to parse type %T", value)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to parse value %q for parameter %q (default value is %#v)", valueStr, paramPath, value)
	}
	ctxInScope.SetParam(paramName, value)
	return nil
}

// CreateContextSettingsFlag create a string flag with the given flagName (if empty it will be named
// "set") and with a description of the current defined parameters in the context `ctx`.
//
// The flag should be created before the call to `flags.Parse()`.
func CreateContextSettingsFlag(ctx *context.Context, flagName string) *string {
	if flagName == "" {
		flagName = "set"
	}
	parts := []string{fmt.Sprintf(
		`Set context parameters defining the model. `+
			`It should be a list of elements "param=value" separated by ";". `+
			`Scoped settings are allowed, by using %q to separated scopes. `+
			`It can also be given an entry like: "file:settings.yaml", in `+
			`which case the YAML file will be read and its settings parsed, with nested mappings used as scopes. `+
			`Current available parameters that can be set:`,
		context.ScopeSeparator)}
	ctx.EnumerateParams(func(scope, key string, value any) {
		if scope != context.RootScope {
			return
		}
		parts = append(parts, fmt.Sprintf("%q: default value is %v", key, value))
	})
	var settings string
	flag.StringVar(&settings, flagName, "", strings.Join(parts, "\n"))
	return &settings
}

// SprintModifiedContextSettings pretty-prints the values of the parameters set, as returned by
// ParseContextSettings.
func SprintModifiedContextSettings(ctx *context.Context, paramsSet []string) string {
	var parts []string
	paramsSet = slices.Clone(paramsSet)
	slices.Sort(paramsSet)
	for _, paramPath := range slices.Compact(paramsSet) {
		paramScope, paramName := context.SplitScope(paramPath)
		if paramScope == "" {
			paramScope = context.RootScope
		}
		value, found := ctx.InAbsPath(paramScope).GetParam(paramName)
		if !found {
			continue
		}
		parts = append(parts, fmt.Sprintf("\t%q: (%T) %v", paramPath, value, value))
	}
	return strings.Join(parts, "\n")
}
