//go:build windows

package winsec

import (
	"fmt"
	"os/user"
)

// CurrentUserSDDL returns a security descriptor, in SDDL form, granting
// full control of the object only to the SID of the currently running
// process's user. On Windows, user.Current().Uid is already the string
// form of the user's SID — no extra syscall is needed to obtain it.
//
// Passed as winio.PipeConfig.SecurityDescriptor, this is what keeps
// other principals on the machine from opening the daemon's pipe.
func CurrentUserSDDL() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("winsec: current user: %w", err)
	}
	if u.Uid == "" {
		return "", fmt.Errorf("winsec: current user has no SID")
	}
	// D:P  - discretionary ACL, protected (do not inherit from parent)
	// (A;;GA;;;<SID>) - Allow Generic All to the owning user's SID only
	return fmt.Sprintf("D:P(A;;GA;;;%s)", u.Uid), nil
}
