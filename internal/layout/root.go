package layout

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/yanun0323/errors"

	"tickrec/pkg/exception"
)

// CheckRoot verifies root exists, is a directory and is readable, writable and
// searchable by this process. It never creates the directory.
func CheckRoot(root string) error {
	if root == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "storage root is empty")
	}
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(exception.ErrStorageRootMissing, "root: %s", root)
		}
		return errors.Wrapf(err, "stat root: %s", root)
	}
	if !info.IsDir() {
		return errors.Wrapf(exception.ErrStorageRootNotDir, "root: %s", root)
	}
	if err := unix.Access(root, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return errors.Wrapf(exception.ErrStorageRootPermission, "root: %s", root)
	}
	return nil
}
