// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package memstore is an in-process implementation of the engine's storage
// ports. It backs the "memory" database type and the engine and handler tests.
package memstore
