package hcloud

import (
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// permanentCodes are API errors that a retry cannot fix: the request itself
// is wrong or the project has run out of quota.
var permanentCodes = []hcloud.ErrorCode{
	hcloud.ErrorCodeNotFound,
	hcloud.ErrorCodeInvalidInput,
	hcloud.ErrorCodeInvalidServerType,
	hcloud.ErrorCodeUniquenessError,
	hcloud.ErrorCodeResourceLimitExceeded,
}

func isPermanent(err error) bool {
	return err != nil && hcloud.IsError(err, permanentCodes...)
}
