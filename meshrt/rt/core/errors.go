package core

import "errors"

var (
	// ErrAllocation reports that a GPU buffer or target could not be created.
	// The frame that hit it is skipped and retried on the next cycle.
	ErrAllocation = errors.New("gpu allocation failed")

	// ErrDispatch reports that the compute kernel or the accumulation pass failed.
	// The sample count is left unchanged.
	ErrDispatch = errors.New("kernel dispatch failed")

	// ErrInconsistentGeometry reports an index that addresses a vertex outside the
	// flattened vertex array, or a descriptor range outside the index array.
	ErrInconsistentGeometry = errors.New("inconsistent geometry")

	ErrDuplicateHandle = errors.New("mesh object already registered")
	ErrUnknownHandle   = errors.New("mesh object not registered")
)
