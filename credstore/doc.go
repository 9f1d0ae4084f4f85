// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package credstore holds ephemeral voting credentials in memory.

Credentials never reach durable storage. The store is a thin wrapper over
github.com/patrickmn/go-cache:

	store := credstore.New(credstore.DefaultCleanupInterval)
	broker := &engine.CredentialBroker{Store: store, ...}

Entries expire on their own by the wall clock. Purge removes entries by an
explicit time so the broker can clean up on every request with its own clock.
*/
package credstore
