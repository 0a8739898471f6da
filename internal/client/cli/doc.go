// Package cli implements the timevault command line client.
//
// Commands:
//
//	create    encrypt a message (and files) into a time-locked secret
//	view      open a share link once it has unlocked
//	status    check a share or edit link without consuming it
//	edit      push the unlock time of a pending secret further out
//	history   list secrets created from this machine
//	token     inspect a capability token
//	health    check that the server is reachable
//	admin     operator commands over the admin gRPC API
//
// Everything that can decrypt a secret stays on the client: the key only
// ever appears in the share link's fragment.
package cli
