// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

package model

import (
	"math/rand"

	"github.com/rs/zerolog"
)

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
