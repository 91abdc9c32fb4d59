// Package template defines the renderer-agnostic contracts shared by the
// renderer adapter, the engine environment and the template loaders, along
// with the parameter helpers every renderer relies on: default parameter
// bookkeeping and normalization of caller supplied parameters.
package template
