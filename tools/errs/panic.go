package errs

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	return pkgerrors.WithStack(ErrInternalServer.WithDetail("panic: " + fmt.Sprint(r)))
}
