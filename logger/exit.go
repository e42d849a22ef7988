// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

package logger

import "os"

// ExitWithError exits the process with the given code. Meant to be
// deferred first in main so that later deferred cleanups still run.
func ExitWithError(code *int) {
	if *code != 0 {
		os.Exit(*code)
	}
}
