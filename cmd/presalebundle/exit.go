package main

import (
	"github.com/ligun0805/presale-bundle/internal/bundlecore"
)

// Exit codes by error kind. 1 is left for anything unclassified.
var kindExitCodes = map[error]int{
	bundlecore.ErrConfiguration:      2,
	bundlecore.ErrPrecondition:       3,
	bundlecore.ErrSigning:            4,
	bundlecore.ErrSubmissionRejected: 5,
	bundlecore.ErrRelayTransport:     6,
	bundlecore.ErrChainRead:          7,
	bundlecore.ErrAborted:            8,
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := kindExitCodes[bundlecore.KindOf(err)]; ok {
		return code
	}
	return 1
}
