//go:build windows

// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package keystore

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

// Well-known groups that must not be granted access to a signing key, by
// SDDL abbreviation and by SID string
var insecureTrustees = map[string]string{
	"WD":           "Everyone",
	"S-1-1-0":      "Everyone",
	"BU":           "BUILTIN\\Users",
	"S-1-5-32-545": "BUILTIN\\Users",
	"AU":           "Authenticated Users",
	"S-1-5-11":     "Authenticated Users",
}

// checkOpenFilePermissions reads the DACL of an open key file. NTFS does not
// allow replacing a file that is held open, so checking by name is safe.
func checkOpenFilePermissions(f *os.File) error {
	return checkFilePermissions(f.Name())
}

func checkFilePermissions(path string) error {
	sd, err := windows.GetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION,
	)
	if err != nil {
		return fmt.Errorf("failed to get security info for %q: %w", path, err)
	}
	// sd is not freed: that needs unsafe.Pointer, which corrupts the heap
	// under Go 1.24+ (go.dev/issue/73199). This runs once per key load.
	sddl := sd.String()
	if sddl == "" {
		return fmt.Errorf("failed to read security descriptor for %q", path)
	}
	return checkSDDL(path, sddl)
}

// checkSDDL rejects a descriptor whose DACL is missing or allows access to
// an insecure trustee
func checkSDDL(path, sddl string) error {
	aces, ok := daclAces(sddl)
	if !ok {
		return fmt.Errorf(
			"key file %q has no DACL (unrestricted access): %w",
			path,
			ErrInsecureFileMode,
		)
	}
	for _, ace := range aces {
		// type;flags;rights;object;inherit;trustee
		fields := strings.Split(ace, ";")
		if len(fields) < 6 || fields[0] != "A" {
			continue
		}
		if name, found := insecureTrustees[fields[5]]; found {
			return fmt.Errorf(
				"key file %q grants access to %s: %w",
				path,
				name,
				ErrInsecureFileMode,
			)
		}
	}
	return nil
}

// daclAces returns the parenthesised ACE strings of the DACL section
func daclAces(sddl string) ([]string, bool) {
	idx := strings.Index(sddl, "D:")
	if idx < 0 {
		return nil, false
	}
	dacl := sddl[idx+2:]
	if end := strings.Index(dacl, "S:"); end >= 0 {
		dacl = dacl[:end]
	}
	var ret []string
	for {
		start := strings.IndexByte(dacl, '(')
		if start < 0 {
			break
		}
		end := strings.IndexByte(dacl[start:], ')')
		if end < 0 {
			break
		}
		ret = append(ret, dacl[start+1:start+end])
		dacl = dacl[start+end+1:]
	}
	return ret, true
}
