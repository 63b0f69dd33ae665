package command

import (
	"fmt"
	"strings"
)

// DenyChars are shell metacharacters that are never accepted
const DenyChars = ";&|()[]{}<>^\"'`"

// destructive substrings are matched against the lowercased command
var destructive = []string{
	"rm -rf",
	"rm -fr",
	"rm -r -f",
	"rm -f -r",
	"rm --recursive --force",
	"rm --force --recursive",
	"rd /s /q",
	"rmdir /s /q",
	"del /s /q",
	"del /f /s /q",
	"mkfs",
	"format c:",
	"fdisk",
	"sfdisk",
	"parted",
	"diskpart",
	"wipefs",
	"dd if=",
	"of=/dev/sd",
	"of=/dev/nvme",
	"of=/dev/hd",
	"of=/dev/vd",
	"shred /dev/",
}

// Verdict is the outcome of Validate. Reason is empty when Allowed.
type Verdict struct {
	Allowed bool
	Reason  string
	Err     error
}

// Validate checks a raw command line against the deny set and the list of
// destructive operations. It never touches the system.
func Validate(command string) Verdict {
	if strings.TrimSpace(command) == "" {
		return Verdict{Reason: "Error: empty command", Err: ErrEmptyCommand}
	}

	if i := strings.IndexAny(command, DenyChars); i >= 0 {
		return Verdict{
			Reason: fmt.Sprintf("Error: command blocked, forbidden character %q", command[i]),
			Err:    ErrBlocked,
		}
	}

	lower := strings.Join(strings.Fields(strings.ToLower(command)), " ")
	for _, op := range destructive {
		if strings.Contains(lower, op) {
			return Verdict{
				Reason: fmt.Sprintf("Error: command blocked, destructive operation %q", op),
				Err:    ErrBlocked,
			}
		}
	}

	return Verdict{Allowed: true}
}
