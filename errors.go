// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dwi2c

import (
	"errors"
	"syscall"
)

// Transfer errors are the errno values a Linux i2c adapter returns for the
// same condition.
var (
	// ErrNoAck: the target did not acknowledge its address or data.
	ErrNoAck error = syscall.EREMOTEIO
	// ErrRetry: arbitration was lost; the whole transfer may be retried.
	ErrRetry error = syscall.EAGAIN
	// ErrInvalid: malformed message list or a read after general call.
	ErrInvalid error = syscall.EINVAL
	ErrIO      error = syscall.EIO
	// ErrTimeout: the bus stayed busy or the transfer never completed.
	ErrTimeout     error = syscall.ETIMEDOUT
	ErrUnsupported error = syscall.EOPNOTSUPP
	ErrClosed      error = syscall.ESHUTDOWN
)

// ErrConfig is wrapped by every error New returns for an unusable
// controller or configuration.
var ErrConfig = errors.New("dwi2c: invalid configuration")
