// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package ingest

import "errors"

// Failure taxonomy for the snapshot path. All of these are recovered locally:
// they surface as health-record updates, never as a crash or a partial merge.
var (
	// ErrFetchTransport wraps network-level snapshot fetch failures.
	ErrFetchTransport = errors.New("snapshot fetch transport error")

	// ErrFetchStatus marks a non-2xx upstream response.
	ErrFetchStatus = errors.New("snapshot fetch rejected by upstream")

	// ErrFetchDecode marks an undecodable snapshot body.
	ErrFetchDecode = errors.New("snapshot response undecodable")
)
