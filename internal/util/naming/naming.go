package naming

import (
	"fmt"
	"strconv"
	"strings"
)

// Server returns the name of the index-th server of role.
func Server(deployment, role string, index int) string {
	return fmt.Sprintf("%s-%s-%d", deployment, role, index)
}

// SSHKey returns the name of the deployment's uploaded SSH key.
func SSHKey(deployment string) string {
	return fmt.Sprintf("%s-ssh", deployment)
}

// ServerIndex extracts the trailing index from a server name. It reports
// false when the name has no numeric suffix.
func ServerIndex(name string) (int, bool) {
	i := strings.LastIndexByte(name, '-')
	if i < 0 || i == len(name)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
