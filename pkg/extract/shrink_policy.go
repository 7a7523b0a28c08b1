// SPDX-License-Identifier: Apache-2.0

package extract

// ShrinkPolicy decides the width of the field chunk after the remote side
// rejects a read. A width of zero or less means the field at the chunk start
// is given up on.
type ShrinkPolicy struct {
	InitialWidth int
	Step         int
}

func (p ShrinkPolicy) Next(width int) int {
	if p.Step <= 0 {
		return 0
	}
	return max(width-p.Step, 0)
}

// MaxAttempts is the maximum number of reads of a chunk start before the
// field is skipped.
func (p ShrinkPolicy) MaxAttempts() int {
	if p.Step <= 0 {
		return 1
	}
	return (p.InitialWidth + p.Step - 1) / p.Step
}
