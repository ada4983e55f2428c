package script

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Name returns the submission script name for an sbatch id, e.g. "sb-0042".
func Name(sbatchID int) string {
	return fmt.Sprintf("sb-%04d", sbatchID)
}

// ElementName returns the name of one array element's wrapper, e.g.
// "sb-0042-101".
func ElementName(sbatchID, arrayIndex int) string {
	return fmt.Sprintf("sb-%04d-%03d", sbatchID, arrayIndex)
}

// ElementLogPattern is the dispatcher's --output path; the scheduler expands
// %a to the array index.
func ElementLogPattern(slurmLogs string, sbatchID int) string {
	return filepath.Join(slurmLogs, Name(sbatchID)+"-%a.txt")
}

// ElementWrapperPath addresses the running element's wrapper through
// ArrayTaskVar.
func ElementWrapperPath(slurmScripts string, sbatchID int) string {
	return filepath.Join(slurmScripts, Name(sbatchID)+"-"+ArrayTaskVar+".sh")
}

// ParseName splits a script or log base name such as "sb-0042-101.sh" into
// its sbatch id and array index (-1 when absent).
func ParseName(base string) (sbatchID, arrayIndex int, ok bool) {
	stem := strings.TrimSuffix(strings.TrimSuffix(base, ".sh"), ".txt")
	rest, found := strings.CutPrefix(stem, "sb-")
	if !found {
		return 0, 0, false
	}
	idPart, elemPart, hasElem := strings.Cut(rest, "-")
	if len(idPart) != 4 || !allDigits(idPart) {
		return 0, 0, false
	}
	sbatchID, _ = strconv.Atoi(idPart)
	if !hasElem {
		return sbatchID, -1, true
	}
	if len(elemPart) != 3 || !allDigits(elemPart) {
		return 0, 0, false
	}
	arrayIndex, _ = strconv.Atoi(elemPart)
	return sbatchID, arrayIndex, true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
